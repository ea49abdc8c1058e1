package state

import (
	"time"
)

// DefaultMaxRecentEntries is the default maximum of entries per list.
const DefaultMaxRecentEntries = 10

// Recent holds recently used values per list. It is guarded by the Manager.
type Recent struct {
	Lists      map[string]*RecentList `yaml:"lists,omitempty" json:"lists,omitempty"`
	MaxPerList int                    `yaml:"max_per_list,omitempty" json:"max_per_list,omitempty"`
}

// RecentList is the recent values of one category, most recent first.
type RecentList struct {
	Entries []*RecentItem `yaml:"entries" json:"entries"`
}

// RecentItem is a single recent value.
type RecentItem struct {
	Value    string    `yaml:"value" json:"value"`
	LastUsed time.Time `yaml:"last_used" json:"last_used"`
	UseCount int       `yaml:"use_count" json:"use_count"`
}

// NewRecent creates an empty Recent.
func NewRecent() *Recent {
	return &Recent{
		Lists:      make(map[string]*RecentList),
		MaxPerList: DefaultMaxRecentEntries,
	}
}

func (r *Recent) normalize() {
	if r.Lists == nil {
		r.Lists = make(map[string]*RecentList)
	}
	if r.MaxPerList <= 0 {
		r.MaxPerList = DefaultMaxRecentEntries
	}
	for name, list := range r.Lists {
		if list == nil {
			delete(r.Lists, name)
		}
	}
}

// Add moves value to the front of a list, creating the entry if needed.
func (r *Recent) Add(listName, value string, now time.Time) {
	if value == "" {
		return
	}

	list, ok := r.Lists[listName]
	if !ok {
		list = &RecentList{}
		r.Lists[listName] = list
	}

	for i, item := range list.Entries {
		if item.Value == value {
			item.LastUsed = now
			item.UseCount++
			copy(list.Entries[1:i+1], list.Entries[:i])
			list.Entries[0] = item
			return
		}
	}

	list.Entries = append([]*RecentItem{{Value: value, LastUsed: now, UseCount: 1}}, list.Entries...)
	if len(list.Entries) > r.MaxPerList {
		list.Entries = list.Entries[:r.MaxPerList]
	}
}

// Get returns the values of a list, most recent first.
func (r *Recent) Get(listName string) []string {
	list, ok := r.Lists[listName]
	if !ok {
		return []string{}
	}

	values := make([]string, len(list.Entries))
	for i, item := range list.Entries {
		values[i] = item.Value
	}
	return values
}
