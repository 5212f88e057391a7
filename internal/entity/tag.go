package entity

// Tag is a catalog record as returned by the remote tag query.
type Tag struct {
	ID            string    `json:"id"`
	Name          string    `json:"name"`
	Aliases       []string  `json:"aliases"`
	ImageURL      string    `json:"image_path"`
	IgnoreAutoTag bool      `json:"ignore_auto_tag"`
	StashIDs      []StashID `json:"stash_ids"`
}

type StashID struct {
	Endpoint string `json:"endpoint"`
	StashID  string `json:"stash_id"`
}

// FirstStashID returns the first external identifier or nil if the tag has none.
func (t *Tag) FirstStashID() *string {
	for _, id := range t.StashIDs {
		if id.StashID != "" {
			v := id.StashID
			return &v
		}
	}

	return nil
}
