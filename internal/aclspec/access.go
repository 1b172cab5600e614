package aclspec

import (
	mapset "github.com/deckarep/golang-set/v2"
	"gopkg.in/yaml.v3"
)

var empty = []string{}

// Access lists the principals granted each permission level. Principals are
// datasite emails or the Everyone wildcard.
type Access struct {
	Admin mapset.Set[string] `yaml:"admin"`
	Read  mapset.Set[string] `yaml:"read"`
	Write mapset.Set[string] `yaml:"write"`
}

func NewAccess(admin, write, read []string) *Access {
	return &Access{
		Admin: mapset.NewSet(admin...),
		Write: mapset.NewSet(write...),
		Read:  mapset.NewSet(read...),
	}
}

// PrivateAccess grants nothing beyond the implicit owner.
func PrivateAccess() *Access {
	return NewAccess(empty, empty, empty)
}

// PublicReadAccess grants read to everyone.
func PublicReadAccess() *Access {
	return NewAccess(empty, empty, []string{Everyone})
}

// PublicReadWriteAccess grants write to everyone.
func PublicReadWriteAccess() *Access {
	return NewAccess(empty, []string{Everyone}, empty)
}

// SharedReadAccess grants read to the given users.
func SharedReadAccess(users ...string) *Access {
	return NewAccess(empty, empty, users)
}

// SharedReadWriteAccess grants write to the given users.
func SharedReadWriteAccess(users ...string) *Access {
	return NewAccess(empty, users, empty)
}

func (a *Access) UnmarshalYAML(value *yaml.Node) error {
	var m map[string][]string
	if err := value.Decode(&m); err != nil {
		return err
	}

	a.Admin = mapset.NewSet[string]()
	a.Read = mapset.NewSet[string]()
	a.Write = mapset.NewSet[string]()

	if admin, ok := m["admin"]; ok {
		a.Admin.Append(admin...)
	}
	if read, ok := m["read"]; ok {
		a.Read.Append(read...)
	}
	if write, ok := m["write"]; ok {
		a.Write.Append(write...)
	}
	return nil
}

func (a Access) MarshalYAML() (interface{}, error) {
	m := make(map[string][]string, 3)
	if a.Admin != nil {
		m["admin"] = a.Admin.ToSlice()
	}
	if a.Read != nil {
		m["read"] = a.Read.ToSlice()
	}
	if a.Write != nil {
		m["write"] = a.Write.ToSlice()
	}
	return m, nil
}
