package domain

import "strings"

// Binding maps each channel slot to an ingredient name. An empty name marks an
// unused slot. Duplicate names are allowed; lookups resolve to the first slot.
type Binding struct {
	slots [ChannelCount]string
}

// Bind builds a Binding from exactly ChannelCount names. Names are trimmed of
// surrounding whitespace, so a blank name leaves its slot unused. They are not
// checked against any catalog here.
func Bind(names []string) (Binding, error) {
	if len(names) != ChannelCount {
		return Binding{}, &InvalidBindingError{Got: len(names), Names: append([]string(nil), names...)}
	}
	var b Binding
	for i, name := range names {
		b.slots[i] = strings.TrimSpace(name)
	}
	return b, nil
}

// PadBinding fills a short list with empty slots before binding it.
func PadBinding(names []string) (Binding, error) {
	if len(names) > ChannelCount {
		return Binding{}, &InvalidBindingError{Got: len(names), Names: append([]string(nil), names...)}
	}
	padded := make([]string, ChannelCount)
	copy(padded, names)
	return Bind(padded)
}

func (b Binding) Resolve(name string) (int, error) {
	if name != "" {
		for i, slot := range b.slots {
			if slot == name {
				return i, nil
			}
		}
	}
	return 0, &UnknownIngredientError{Name: name}
}

func (b Binding) Contains(name string) bool {
	_, err := b.Resolve(name)
	return err == nil
}

func (b Binding) Slots() []string {
	out := make([]string, ChannelCount)
	copy(out, b.slots[:])
	return out
}

// Ingredients returns the non-empty slots in channel order.
func (b Binding) Ingredients() []string {
	out := make([]string, 0, ChannelCount)
	for _, slot := range b.slots {
		if slot != "" {
			out = append(out, slot)
		}
	}
	return out
}
