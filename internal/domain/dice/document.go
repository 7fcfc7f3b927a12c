package dice

// Document is the whole persisted state. Every mapping is keyed by community id.
type Document struct {
	Images      map[string][]Collectible       `json:"images"`
	Users       map[string]map[string]*Account `json:"users"`
	DropChannel map[string]Ref                 `json:"drop_channel"`
	DropRole    map[string]Ref                 `json:"drop_role"`
}

// NewDocument returns the empty default document.
func NewDocument() *Document {
	return &Document{
		Images:      map[string][]Collectible{},
		Users:       map[string]map[string]*Account{},
		DropChannel: map[string]Ref{},
		DropRole:    map[string]Ref{},
	}
}

// Normalize fills missing mappings and derives collectible numbers after decoding.
func (d *Document) Normalize() {
	if d.Images == nil {
		d.Images = map[string][]Collectible{}
	}
	if d.Users == nil {
		d.Users = map[string]map[string]*Account{}
	}
	if d.DropChannel == nil {
		d.DropChannel = map[string]Ref{}
	}
	if d.DropRole == nil {
		d.DropRole = map[string]Ref{}
	}
	for _, catalog := range d.Images {
		for i := range catalog {
			n, err := ParseName(catalog[i].Name)
			if err != nil {
				n = i + 1
				catalog[i].Name = CollectibleName(n)
			}
			catalog[i].Number = n
		}
	}
	for community, members := range d.Users {
		if members == nil {
			d.Users[community] = map[string]*Account{}
			continue
		}
		for id, acc := range members {
			if acc == nil {
				members[id] = &Account{Images: []int{}}
			} else if acc.Images == nil {
				acc.Images = []int{}
			}
		}
	}
}

// Clone deep-copies the document.
func (d *Document) Clone() *Document {
	cp := &Document{
		Images:      make(map[string][]Collectible, len(d.Images)),
		Users:       make(map[string]map[string]*Account, len(d.Users)),
		DropChannel: make(map[string]Ref, len(d.DropChannel)),
		DropRole:    make(map[string]Ref, len(d.DropRole)),
	}
	for c, catalog := range d.Images {
		cp.Images[c] = append(make([]Collectible, 0, len(catalog)), catalog...)
	}
	for c, members := range d.Users {
		m := make(map[string]*Account, len(members))
		for id, acc := range members {
			m[id] = acc.clone()
		}
		cp.Users[c] = m
	}
	for c, ref := range d.DropChannel {
		cp.DropChannel[c] = ref
	}
	for c, ref := range d.DropRole {
		cp.DropRole[c] = ref
	}
	return cp
}

// Account returns the member's account, creating a zero one when absent.
func (d *Document) Account(community, member string) *Account {
	members, ok := d.Users[community]
	if !ok {
		members = map[string]*Account{}
		d.Users[community] = members
	}
	acc, ok := members[member]
	if !ok {
		acc = &Account{Images: []int{}}
		members[member] = acc
	}
	return acc
}

// LookupAccount returns the account without creating it.
func (d *Document) LookupAccount(community, member string) (*Account, bool) {
	acc, ok := d.Users[community][member]
	return acc, ok
}
