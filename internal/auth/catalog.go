package auth

// Role names. The set is closed; there is no role hierarchy and no implicit
// inheritance between them.
const (
	RoleLeader = "leader"
	RoleStaff  = "staff"
)

// Permission codes. Membership checks are exact-string equality only.
const (
	PermViewProject   = "view_project"
	PermCreateProject = "create_project"
	PermEditProject   = "edit_project"
	PermDeleteProject = "delete_project"

	PermViewTask         = "view_task"
	PermCreateTask       = "create_task"
	PermEditTask         = "edit_task"
	PermDeleteTask       = "delete_task"
	PermAssignTask       = "assign_task"
	PermCommentTask      = "comment_task"
	PermChangeTaskStatus = "change_task_status"

	PermManageProjectMembers = "manage_project_members"
	PermManageResources      = "manage_resources"
	PermViewReport           = "view_report"
	PermManageAlerts         = "manage_alerts"
	PermManageStaff          = "manage_staff"
	PermManageTimeline       = "manage_timeline"
	PermTeamCommunication    = "team_communication"
)

// Catalog is the immutable reference data the gate consults: the fixed role
// set, the permission codes, and which codes each role is granted. It is
// loaded once at process start and passed by reference; nothing mutates it.
type Catalog struct {
	Roles       []Role
	Permissions []Permission
	// Grants maps a role name to the permission codes granted to it.
	Grants map[string][]string
}

// DefaultCatalog returns the built-in reference data.
func DefaultCatalog() Catalog {
	return Catalog{
		Roles: []Role{
			{Name: RoleLeader, Description: "Project leader"},
			{Name: RoleStaff, Description: "Project staff member"},
		},
		Permissions: []Permission{
			{Code: PermViewProject, Description: "View projects"},
			{Code: PermCreateProject, Description: "Create projects"},
			{Code: PermEditProject, Description: "Edit projects"},
			{Code: PermDeleteProject, Description: "Delete projects"},
			{Code: PermViewTask, Description: "View tasks"},
			{Code: PermCreateTask, Description: "Create tasks"},
			{Code: PermEditTask, Description: "Edit tasks"},
			{Code: PermDeleteTask, Description: "Delete tasks"},
			{Code: PermAssignTask, Description: "Assign tasks"},
			{Code: PermCommentTask, Description: "Comment on tasks"},
			{Code: PermChangeTaskStatus, Description: "Change task status"},
			{Code: PermManageProjectMembers, Description: "Manage project members"},
			{Code: PermManageResources, Description: "Manage resources"},
			{Code: PermViewReport, Description: "View reports"},
			{Code: PermManageAlerts, Description: "Manage alerts"},
			{Code: PermManageStaff, Description: "Manage staff"},
			{Code: PermManageTimeline, Description: "Manage timelines"},
			{Code: PermTeamCommunication, Description: "Team communication"},
		},
		Grants: map[string][]string{
			RoleLeader: {
				PermViewProject, PermCreateProject, PermEditProject, PermDeleteProject,
				PermViewTask, PermCreateTask, PermEditTask, PermDeleteTask,
				PermAssignTask, PermCommentTask, PermChangeTaskStatus,
				PermManageProjectMembers, PermManageResources,
				PermViewReport, PermManageAlerts, PermManageStaff, PermManageTimeline,
			},
			RoleStaff: {
				PermViewProject, PermViewTask, PermChangeTaskStatus,
				PermCommentTask, PermTeamCommunication,
			},
		},
	}
}
