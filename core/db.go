package core

import "strings"

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// FilterOrderings drops orderings on fields that are not in allowed, so they can be interpolated into SQL.
func FilterOrderings(ordering []DBOrdering, allowed ...string) []DBOrdering {
	out := make([]DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		for _, fld := range allowed {
			if strings.EqualFold(ord.Field, fld) {
				out = append(out, DBOrdering{Field: fld, Ascending: ord.Ascending})
				break
			}
		}
	}
	return out
}
