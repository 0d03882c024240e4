package floor

// Selection is the transient, ordered set of tables picked on the layout
// editor. The first selected table becomes the merge primary.
type Selection struct {
	ids []string
}

func (s *Selection) Toggle(id string) bool {
	for i, v := range s.ids {
		if v == id {
			s.ids = append(s.ids[:i], s.ids[i+1:]...)
			return false
		}
	}
	s.ids = append(s.ids, id)
	return true
}

func (s *Selection) Clear() {
	s.ids = nil
}

func (s *Selection) Contains(id string) bool {
	for _, v := range s.ids {
		if v == id {
			return true
		}
	}
	return false
}

func (s *Selection) Len() int {
	return len(s.ids)
}

func (s *Selection) IDs() []string {
	return append([]string{}, s.ids...)
}
