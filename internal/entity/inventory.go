package entity

// InventoryEntry is the exported state of one tag. Img and Vid hold bare file names.
type InventoryEntry struct {
	Img           *string     `json:"img"`
	Vid           *string     `json:"vid"`
	Ignore        bool        `json:"ignore"`
	Alt           bool        `json:"alt"`
	ImgDimensions *Dimensions `json:"imgDimensions"`
	Aliases       []string    `json:"aliases"`
	StashID       *string     `json:"stashID"`
}

// Inventory is keyed by tag name.
type Inventory map[string]*InventoryEntry
