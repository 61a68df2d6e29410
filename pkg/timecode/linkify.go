package timecode

import (
	"html"
	"strconv"
	"strings"
)

// Fragment is one piece of annotated text: either plain text or a
// timestamp reference that requests a seek when activated.
type Fragment struct {
	Text string `json:"text" yaml:"text"`
	Ref  *Ref   `json:"ref,omitempty" yaml:"ref,omitempty"`
}

// Annotated is text split into plain fragments and timestamp references.
// It carries the seek targets alongside the text so any surface can render
// them with its own activation mechanism.
type Annotated struct {
	Fragments []Fragment `json:"fragments" yaml:"fragments"`
}

// Linkify splits text at every timestamp reference. The input is not
// modified and concatenating fragment texts gives it back unchanged.
func Linkify(text string) Annotated {
	refs := ExtractRefs(text)
	if len(refs) == 0 {
		if text == "" {
			return Annotated{}
		}
		return Annotated{Fragments: []Fragment{{Text: text}}}
	}

	frags := make([]Fragment, 0, len(refs)*2+1)
	pos := 0
	for i := range refs {
		r := refs[i]
		if r.Start > pos {
			frags = append(frags, Fragment{Text: text[pos:r.Start]})
		}
		frags = append(frags, Fragment{Text: r.Display, Ref: &r})
		pos = r.End
	}
	if pos < len(text) {
		frags = append(frags, Fragment{Text: text[pos:]})
	}
	return Annotated{Fragments: frags}
}

// Plain returns the original text.
func (a Annotated) Plain() string {
	var b strings.Builder
	for _, f := range a.Fragments {
		b.WriteString(f.Text)
	}
	return b.String()
}

// Refs returns the references in order of appearance.
func (a Annotated) Refs() []Ref {
	var refs []Ref
	for _, f := range a.Fragments {
		if f.Ref != nil {
			refs = append(refs, *f.Ref)
		}
	}
	return refs
}

// HTML renders references as anchors carrying the seek target in a
// data-seconds attribute. All text is escaped.
func (a Annotated) HTML() string {
	var b strings.Builder
	for _, f := range a.Fragments {
		if f.Ref == nil {
			b.WriteString(html.EscapeString(f.Text))
			continue
		}
		b.WriteString(`<a href="#" class="timestamp-link" data-seconds="`)
		b.WriteString(strconv.Itoa(f.Ref.Seconds))
		b.WriteString(`">`)
		b.WriteString(html.EscapeString(f.Ref.Display))
		b.WriteString(`</a>`)
	}
	return b.String()
}

// Render writes each fragment through the given functions. It lets a
// surface decorate references without knowing how they were found.
func (a Annotated) Render(text func(string) string, ref func(index int, r Ref) string) string {
	var b strings.Builder
	n := 0
	for _, f := range a.Fragments {
		if f.Ref == nil {
			b.WriteString(text(f.Text))
			continue
		}
		b.WriteString(ref(n, *f.Ref))
		n++
	}
	return b.String()
}
