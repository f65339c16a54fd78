package domain

// Permission names one action on one resource, formatted "<resource>:<action>".
type Permission string

const (
	ResourceEmployees     = "employees"
	ResourceDepartments   = "departments"
	ResourceJobTitles     = "jobtitles"
	ResourceAttendance    = "attendance"
	ResourceNotifications = "notifications"
	ResourceUsers         = "users"

	ActionCreate = "create"
	ActionRead   = "read"
	ActionUpdate = "update"
	ActionDelete = "delete"
)

var (
	resources = []string{
		ResourceEmployees,
		ResourceDepartments,
		ResourceJobTitles,
		ResourceAttendance,
		ResourceNotifications,
		ResourceUsers,
	}
	actions = []string{ActionCreate, ActionRead, ActionUpdate, ActionDelete}
)

func NewPermission(resource, action string) Permission {
	return Permission(resource + ":" + action)
}

const (
	PermUsersCreate = Permission(ResourceUsers + ":" + ActionCreate)
	PermUsersRead   = Permission(ResourceUsers + ":" + ActionRead)
	PermUsersUpdate = Permission(ResourceUsers + ":" + ActionUpdate)
)

// rolePermissions is built once; it never changes at runtime.
var rolePermissions = buildRolePermissions()

func buildRolePermissions() map[Role][]Permission {
	hr := map[string][]string{
		ResourceEmployees:     actions,
		ResourceAttendance:    actions,
		ResourceDepartments:   {ActionCreate, ActionRead, ActionUpdate},
		ResourceJobTitles:     {ActionCreate, ActionRead, ActionUpdate},
		ResourceNotifications: {ActionCreate, ActionRead},
		ResourceUsers:         {ActionRead},
	}

	table := make(map[Role][]Permission, len(roles))
	for _, resource := range resources {
		for _, action := range actions {
			p := NewPermission(resource, action)
			table[RoleAdmin] = append(table[RoleAdmin], p)
			if action == ActionRead {
				table[RoleViewer] = append(table[RoleViewer], p)
			}
			if contains(hr[resource], action) {
				table[RoleHR] = append(table[RoleHR], p)
			}
		}
	}
	return table
}

// PermissionsFor returns the ordered permission set of role. Unknown roles get
// an empty set. The returned slice is a copy.
func PermissionsFor(role Role) []Permission {
	perms := rolePermissions[role]
	out := make([]Permission, len(perms))
	copy(out, perms)
	return out
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
