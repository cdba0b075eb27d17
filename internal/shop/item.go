package shop

import (
	"strconv"

	"pps/internal/keyedstore"
	"pps/internal/storage"
)

// ReleaseStride packs a release number and an item id into one sortable
// release-id: release*ReleaseStride + id.
const ReleaseStride = 100000

// Item is a shop catalog entry.
type Item struct {
	Category    string `json:"category"`
	ReleaseID   int64  `json:"release-id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int64  `json:"price"`
}

// ReleaseID packs release and id.
func ReleaseID(release, id int64) int64 {
	return release*ReleaseStride + id
}

func (i Item) Release() int64 {
	return i.ReleaseID / ReleaseStride
}

func (i Item) ID() int64 {
	return i.ReleaseID % ReleaseStride
}

// PurchaseKey is the bought_items entry counting purchases of this item.
func (i Item) PurchaseKey() string {
	return i.Category + strconv.FormatInt(i.ReleaseID, 10)
}

func (i Item) toItem() keyedstore.Item {
	return keyedstore.Item{
		storage.AttrName:        i.Name,
		storage.AttrDescription: i.Description,
		storage.AttrPrice:       i.Price,
	}
}

func itemFrom(it keyedstore.Item) *Item {
	return &Item{
		Category:    it.String(storage.AttrCategory),
		ReleaseID:   it.Int(storage.AttrReleaseID),
		Name:        it.String(storage.AttrName),
		Description: it.String(storage.AttrDescription),
		Price:       it.Int(storage.AttrPrice),
	}
}
