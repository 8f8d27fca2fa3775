package shared

// Core platform permissions gating administrative endpoints.
const (
	PermManageRoles     = "rbac.manage_roles"
	PermManageUsers     = "rbac.manage_users"
	PermViewPermissions = "rbac.view_permissions"

	PermSettingsView   = "settings.view"
	PermSettingsManage = "settings.manage"
)

// Travel product permissions gating menu entries and dashboard widgets.
const (
	PermDashboardView  = "dashboard.view"
	PermReportsView    = "reports.view"
	PermHotelsView     = "hotels.view"
	PermCarsView       = "cars.view"
	PermPackagesView   = "packages.view"
	PermEarningView    = "earning.view"
	PermAirTicketsView = "airtickets.view"
	PermVisaView       = "visa.view"
)
