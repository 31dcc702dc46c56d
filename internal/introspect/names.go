package introspect

// NameCache memoizes qualified names for the duration of one pass.
//
// Identity-to-name mapping may change between process runs, so a cache
// must never outlive the pass that created it. Not safe for concurrent use;
// each pass owns its own cache.
type NameCache struct {
	namer Namer
	names map[Entity]string
	errs  map[Entity]error
}

// NewNameCache wraps namer with a fresh, empty cache.
func NewNameCache(namer Namer) *NameCache {
	return &NameCache{
		namer: namer,
		names: make(map[Entity]string),
		errs:  make(map[Entity]error),
	}
}

// QualifiedName implements Namer.
func (c *NameCache) QualifiedName(e Entity) (string, error) {
	if name, ok := c.names[e]; ok {
		return name, nil
	}
	if err, ok := c.errs[e]; ok {
		return "", err
	}

	name, err := c.namer.QualifiedName(e)
	if err != nil {
		c.errs[e] = err
		return "", err
	}
	c.names[e] = name
	return name, nil
}

// Len returns the number of resolved names held.
func (c *NameCache) Len() int {
	return len(c.names)
}
