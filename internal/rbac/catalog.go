package rbac

import "fmt"

// moduleActions enumerates the seeded permission catalog per module.
var moduleActions = map[string][]string{
	"dashboard":  {"view"},
	"settings":   {"view", "create", "update", "delete", "report", "manage"},
	"reports":    {"view", "create", "update", "delete", "report"},
	"hotels":     {"view", "create", "update", "delete", "report"},
	"cars":       {"view", "create", "update", "delete", "report"},
	"packages":   {"view", "create", "update", "delete", "report"},
	"earning":    {"view", "create", "update", "delete", "report"},
	"airtickets": {"view", "create", "update", "delete", "report"},
	"visa":       {"view", "create", "update", "delete", "report"},
}

// rbacExtraCodes are the administrative codes gating RBAC management itself.
var rbacExtraCodes = []string{
	"rbac.manage_roles",
	"rbac.manage_users",
	"rbac.view_permissions",
}

var customerPermissionCodes = []string{
	"dashboard.view",
	"settings.view",
	"hotels.view",
	"cars.view",
	"packages.view",
	"airtickets.view",
	"visa.view",
	"earning.view",
	"reports.view",
}

// DefaultCatalog returns the seeded permission universe.
func DefaultCatalog() []PermissionSeed {
	var seeds []PermissionSeed
	for _, module := range []string{"dashboard", "settings", "reports", "hotels", "cars", "packages", "earning", "airtickets", "visa"} {
		for _, action := range moduleActions[module] {
			seeds = append(seeds, PermissionSeed{
				Code:        fmt.Sprintf("%s.%s", module, action),
				Module:      module,
				Action:      action,
				Description: fmt.Sprintf("Allows %s on %s.", action, module),
			})
		}
	}
	for _, code := range rbacExtraCodes {
		module, action, _ := splitCode(code)
		seeds = append(seeds, PermissionSeed{
			Code:        code,
			Module:      module,
			Action:      action,
			Description: fmt.Sprintf("Allows %s operations.", action),
		})
	}
	return seeds
}

// DefaultRoles returns the seeded default roles: admin holds every catalog
// code, customer the read-only product set.
func DefaultRoles() []RoleSeed {
	catalog := DefaultCatalog()
	adminCodes := make([]string, 0, len(catalog))
	for _, seed := range catalog {
		adminCodes = append(adminCodes, seed.Code)
	}
	return []RoleSeed{
		{Name: "Admin", Slug: "admin", Description: "Platform administrator", Permissions: adminCodes},
		{Name: "Customer", Slug: "customer", Description: "Default customer role", Permissions: customerPermissionCodes},
	}
}

func splitCode(code string) (module, action string, ok bool) {
	for i := 0; i < len(code); i++ {
		if code[i] == '.' {
			return code[:i], code[i+1:], true
		}
	}
	return code, "", false
}
