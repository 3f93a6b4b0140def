package catalog

// Index maps image ids to their source URL
type Index map[string]string

// NewIndex builds an Index from an image result set. Later duplicates win.
func NewIndex(images []Image) Index {
	idx := make(Index, len(images))
	for _, img := range images {
		idx[img.ID] = img.URL
	}
	return idx
}

// Lookup returns the URL for an image id. An image with a blank URL counts as missing.
func (idx Index) Lookup(imageID string) (string, bool) {
	url, ok := idx[imageID]
	return url, ok && url != ""
}
