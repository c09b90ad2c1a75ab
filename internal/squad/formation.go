package squad

import (
	"fmt"
	"sort"
)

// Layout is a named tactical system with its ordered slots.
type Layout struct {
	Name  string `json:"name"`
	Slots []Slot `json:"slots"`
}

func (l Layout) Slot(id string) (Slot, bool) {
	for _, s := range l.Slots {
		if s.ID == id {
			return s, true
		}
	}
	return Slot{}, false
}

func gk() Slot { return Slot{ID: GoalkeeperSlotID, Type: string(PositionGoalkeeper), Label: "GK"} }

func def(id, label string) Slot { return Slot{ID: id, Type: string(PositionDefender), Label: label} }

func mid(id, label string) Slot { return Slot{ID: id, Type: string(PositionMidfielder), Label: label} }

func fwd(id, label string) Slot { return Slot{ID: id, Type: string(PositionForward), Label: label} }

var layouts = map[string]Layout{
	"1-4-4-2": {Name: "1-4-4-2", Slots: []Slot{
		gk(),
		def("lb", "LB"), def("lcb", "LCB"), def("rcb", "RCB"), def("rb", "RB"),
		mid("lm", "LM"), mid("lcm", "LCM"), mid("rcm", "RCM"), mid("rm", "RM"),
		fwd("ls", "LS"), fwd("rs", "RS"),
	}},
	"1-4-3-3": {Name: "1-4-3-3", Slots: []Slot{
		gk(),
		def("lb", "LB"), def("lcb", "LCB"), def("rcb", "RCB"), def("rb", "RB"),
		mid("lcm", "LCM"), mid("cm", "CM"), mid("rcm", "RCM"),
		fwd("lw", "LW"), fwd("st", "ST"), fwd("rw", "RW"),
	}},
	"1-3-5-2": {Name: "1-3-5-2", Slots: []Slot{
		gk(),
		def("lcb", "LCB"), def("cb", "CB"), def("rcb", "RCB"),
		mid("lwb", "LWB"), mid("lcm", "LCM"), mid("cm", "CM"), mid("rcm", "RCM"), mid("rwb", "RWB"),
		fwd("ls", "LS"), fwd("rs", "RS"),
	}},
	"1-4-2-3-1": {Name: "1-4-2-3-1", Slots: []Slot{
		gk(),
		def("lb", "LB"), def("lcb", "LCB"), def("rcb", "RCB"), def("rb", "RB"),
		mid("ldm", "LDM"), mid("rdm", "RDM"),
		mid("lam", "LAM"), mid("cam", "CAM"), mid("ram", "RAM"),
		fwd("st", "ST"),
	}},
}

// ErrUnknownLayout is returned by LookupLayout for unregistered names.
type ErrUnknownLayout struct {
	Name string
}

func (e ErrUnknownLayout) Error() string {
	return fmt.Sprintf("unknown formation %q", e.Name)
}

// LookupLayout returns a copy so callers cannot mutate the registry.
func LookupLayout(name string) (Layout, error) {
	layout, ok := layouts[name]
	if !ok {
		return Layout{}, ErrUnknownLayout{Name: name}
	}
	slots := make([]Slot, len(layout.Slots))
	copy(slots, layout.Slots)
	return Layout{Name: layout.Name, Slots: slots}, nil
}

func LayoutNames() []string {
	names := make([]string, 0, len(layouts))
	for name := range layouts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
