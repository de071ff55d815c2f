package http2

// HeaderField is a decoded header field.
type HeaderField struct {
	Name  string
	Value string
	// Indexed reports that the name was taken from a compression table.
	Indexed bool
	// Incremental reports that the field is inserted into the dynamic table.
	Incremental bool
	// Sensitive marks a never-indexed literal.
	Sensitive bool
}

// Size is the field size as accounted by the dynamic table.
func (f HeaderField) Size() uint32 {
	return entrySize(f.Name, f.Value)
}

func entrySize(name, value string) uint32 {
	return uint32(len(name)+len(value)) + 32
}

var staticTable = [...]HeaderField{
	{Name: ":authority"},
	{Name: ":method", Value: "GET"},
	{Name: ":method", Value: "POST"},
	{Name: ":path", Value: "/"},
	{Name: ":path", Value: "/index.html"},
	{Name: ":scheme", Value: "http"},
	{Name: ":scheme", Value: "https"},
	{Name: ":status", Value: "200"},
	{Name: ":status", Value: "204"},
	{Name: ":status", Value: "206"},
	{Name: ":status", Value: "304"},
	{Name: ":status", Value: "400"},
	{Name: ":status", Value: "404"},
	{Name: ":status", Value: "500"},
	{Name: "accept-charset"},
	{Name: "accept-encoding", Value: "gzip, deflate"},
	{Name: "accept-language"},
	{Name: "accept-ranges"},
	{Name: "accept"},
	{Name: "access-control-allow-origin"},
	{Name: "age"},
	{Name: "allow"},
	{Name: "authorization"},
	{Name: "cache-control"},
	{Name: "content-disposition"},
	{Name: "content-encoding"},
	{Name: "content-language"},
	{Name: "content-length"},
	{Name: "content-location"},
	{Name: "content-range"},
	{Name: "content-type"},
	{Name: "cookie"},
	{Name: "date"},
	{Name: "etag"},
	{Name: "expect"},
	{Name: "expires"},
	{Name: "from"},
	{Name: "host"},
	{Name: "if-match"},
	{Name: "if-modified-since"},
	{Name: "if-none-match"},
	{Name: "if-range"},
	{Name: "if-unmodified-since"},
	{Name: "last-modified"},
	{Name: "link"},
	{Name: "location"},
	{Name: "max-forwards"},
	{Name: "proxy-authenticate"},
	{Name: "proxy-authorization"},
	{Name: "range"},
	{Name: "referer"},
	{Name: "refresh"},
	{Name: "retry-after"},
	{Name: "server"},
	{Name: "set-cookie"},
	{Name: "strict-transport-security"},
	{Name: "transfer-encoding"},
	{Name: "user-agent"},
	{Name: "vary"},
	{Name: "via"},
	{Name: "www-authenticate"},
}

// headerTable is the static table followed by the dynamic table.
// Dynamic entries are kept oldest first; index 62 is the newest.
type headerTable struct {
	entries []HeaderField
	size    uint32
	maxSize uint32
	allowed uint32
}

func newHeaderTable(allowed uint32) headerTable {
	return headerTable{
		maxSize: allowed,
		allowed: allowed,
	}
}

func (t *headerTable) get(i uint64) (HeaderField, bool) {
	if i == 0 {
		return HeaderField{}, false
	}
	if i <= uint64(len(staticTable)) {
		return staticTable[i-1], true
	}
	i -= uint64(len(staticTable))
	if i > uint64(len(t.entries)) {
		return HeaderField{}, false
	}
	return t.entries[len(t.entries)-int(i)], true
}

func (t *headerTable) add(f HeaderField) {
	sz := entrySize(f.Name, f.Value)
	if sz > t.maxSize {
		t.evict(0)
		return
	}
	t.evict(t.maxSize - sz)
	t.entries = append(t.entries, HeaderField{Name: f.Name, Value: f.Value})
	t.size += sz
}

// evict drops the oldest entries until the table fits in limit.
func (t *headerTable) evict(limit uint32) {
	n := 0
	for t.size > limit && n < len(t.entries) {
		t.size -= entrySize(t.entries[n].Name, t.entries[n].Value)
		n++
	}
	if n == 0 {
		return
	}
	k := copy(t.entries, t.entries[n:])
	for i := k; i < len(t.entries); i++ {
		t.entries[i] = HeaderField{}
	}
	t.entries = t.entries[:k]
}

func (t *headerTable) setMaxSize(v uint64) bool {
	if v > uint64(t.allowed) {
		return false
	}
	t.maxSize = uint32(v)
	t.evict(t.maxSize)
	return true
}

// setAllowed changes the bound for size updates and reports whether the
// table is currently larger than the new bound.
func (t *headerTable) setAllowed(v uint32) bool {
	t.allowed = v
	return t.maxSize > v
}
