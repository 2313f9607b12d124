package model

// Schemas returns the descriptors of the built-in entity types.
func Schemas() []Schema {
	return []Schema{
		{
			Type: "user",
			New:  func() Object { return &User{} },
			Properties: []Property{
				{Name: "email", Kind: KindStr},
				{Name: "is_admin", Kind: KindBool},
				{Name: "authentication", Kind: KindStr},
				{Name: "password", Kind: KindStr, Private: true},
				{Name: "theme", Kind: KindStr},
				{Name: "requests", Kind: KindDict, Computed: true, ReadOnly: true, NoMigrate: true},
			},
			Relationships: []Relationship{
				{Name: "groups", Model: "group", List: true},
				{Name: "pools", Model: "pool", List: true},
			},
		},
		{
			Type: "group",
			New:  func() Object { return &Group{} },
			Properties: []Property{
				{Name: "description", Kind: KindStr},
				{Name: "email", Kind: KindStr},
				{Name: "model_access", Kind: KindDict},
				{Name: "endpoints", Kind: KindDict},
			},
			Relationships: []Relationship{
				{Name: "users", Model: "user", List: true},
			},
		},
		{
			Type: "pool",
			New:  func() Object { return &Pool{} },
			Properties: []Property{
				{Name: "description", Kind: KindStr},
				{Name: "manually_defined", Kind: KindBool},
			},
			Relationships: []Relationship{
				{Name: "devices", Model: "device", List: true},
				{Name: "links", Model: "link", List: true},
				{Name: "users", Model: "user", List: true, NoMigrate: true},
			},
		},
		{
			Type: "device",
			New:  func() Object { return &Device{} },
			Properties: []Property{
				{Name: "model", Kind: KindStr},
				{Name: "vendor", Kind: KindStr},
				{Name: "operating_system", Kind: KindStr},
				{Name: "ip_address", Kind: KindStr},
				{Name: "port", Kind: KindInt},
				{Name: "username", Kind: KindStr},
				{Name: "password", Kind: KindStr, Private: true},
				{Name: "enable_password", Kind: KindStr, Private: true},
				{Name: "icon", Kind: KindStr},
				{Name: "custom_properties", Kind: KindDict, MergeUpdate: true},
				{Name: "last_status", Kind: KindStr, Computed: true, NoMigrate: true},
			},
			Relationships: []Relationship{
				{Name: "pools", Model: "pool", List: true, NoMigrate: true},
			},
		},
		{
			Type: "link",
			New:  func() Object { return &Link{} },
			Properties: []Property{
				{Name: "description", Kind: KindStr},
				{Name: "model", Kind: KindStr},
				{Name: "vendor", Kind: KindStr},
			},
			Relationships: []Relationship{
				{Name: "source", Model: "device"},
				{Name: "destination", Model: "device"},
				{Name: "pools", Model: "pool", List: true, NoMigrate: true},
			},
		},
		{
			Type: "service",
			New:  func() Object { return &Service{} },
			Properties: []Property{
				{Name: "description", Kind: KindStr},
				{Name: "vendor", Kind: KindStr},
				{Name: "priority", Kind: KindInt},
				{Name: "max_processes", Kind: KindInt},
				{Name: "custom_username", Kind: KindStr},
				{Name: "custom_password", Kind: KindStr, Private: true},
				{Name: "parameterized_form", Kind: KindStr},
				{Name: "optional_args", Kind: KindDict, MergeUpdate: true},
				{Name: "status", Kind: KindStr, NoSerialize: true},
			},
			Relationships: []Relationship{
				{Name: "devices", Model: "device", List: true},
				{Name: "pools", Model: "pool", List: true},
			},
		},
		{
			Type: "changelog",
			New:  func() Object { return &Changelog{} },
			Properties: []Property{
				{Name: "time", Kind: KindStr},
				{Name: "severity", Kind: KindStr},
				{Name: "content", Kind: KindStr},
				{Name: "user", Kind: KindStr},
			},
		},
	}
}

// DefaultRegistry builds the registry of the built-in types. It panics if
// the built-in descriptors do not match their models.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Schemas()...)
	if err != nil {
		panic(err)
	}
	return r
}
