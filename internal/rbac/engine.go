package rbac

// EffectivePermissions resolves the role's base template overlaid with its own set.
// Each resource key present on the role replaces the base entry for that key; the same
// rule applies independently to each special capability. Neither input is mutated.
func EffectivePermissions(role Role) PermissionSet {
	effective := Template(role.Base)
	own := role.Permissions
	for r, actions := range own.Resources {
		effective.Resources[r] = actions
	}
	for c, v := range own.Special.Flags {
		effective.Special.Flags[c] = v
	}
	if own.Special.MaxDiscount != nil {
		v := *own.Special.MaxDiscount
		effective.Special.MaxDiscount = &v
	}
	return effective
}

// HasPermission reports whether the role may perform action on resource.
func HasPermission(role Role, resource Resource, action Action) bool {
	return EffectivePermissions(role).Allows(resource, action)
}

// Allows reports whether the set grants action on resource. A missing resource grants nothing.
func (p PermissionSet) Allows(resource Resource, action Action) bool {
	actions, ok := p.Resources[resource]
	if !ok {
		return false
	}
	return actions.Has(action)
}

// HasSpecialCapability reports whether the role holds the named capability.
// The discount ceiling counts as held when strictly positive.
func HasSpecialCapability(role Role, c Capability) bool {
	return EffectivePermissions(role).Holds(c)
}

// Holds reports whether the set grants the capability.
func (p PermissionSet) Holds(c Capability) bool {
	if c == CapMaxDiscount {
		return p.MaxDiscount() > 0
	}
	return p.Special.Flags[c]
}

// MaxDiscount returns the resolved discount ceiling for the role, 0 when unset.
func MaxDiscount(role Role) float64 {
	return EffectivePermissions(role).MaxDiscount()
}

// MaxDiscount returns the discount ceiling of the set, 0 when unset.
func (p PermissionSet) MaxDiscount() float64 {
	if p.Special.MaxDiscount == nil {
		return 0
	}
	return *p.Special.MaxDiscount
}
