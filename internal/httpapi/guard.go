package httpapi

import "taskforge.org/internal/auth"

// Route policies, built once at package init. Capability checks go through
// the role-permission catalog; the leader role set is named explicitly where
// an operation is leadership-only regardless of grants.
var (
	leaderOnly = []string{auth.RoleLeader}

	policyViewProject   = auth.RequirePermission(auth.PermViewProject)
	policyCreateProject = auth.RequireRolesAndPermission(leaderOnly, auth.PermCreateProject)
	policyEditProject   = auth.RequireRolesAndPermission(leaderOnly, auth.PermEditProject)
	policyDeleteProject = auth.RequireRolesAndPermission(leaderOnly, auth.PermDeleteProject)
	policyManageMembers = auth.RequireRolesAndPermission(leaderOnly, auth.PermManageProjectMembers)

	policyViewTask    = auth.RequirePermission(auth.PermViewTask)
	policyCreateTask  = auth.RequireRolesAndPermission(leaderOnly, auth.PermCreateTask)
	policyEditTask    = auth.RequireRolesAndPermission(leaderOnly, auth.PermEditTask)
	policyDeleteTask  = auth.RequireRolesAndPermission(leaderOnly, auth.PermDeleteTask)
	policyAssignTask  = auth.RequireRolesAndPermission(leaderOnly, auth.PermAssignTask)
	policyMoveTask    = auth.RequirePermission(auth.PermChangeTaskStatus)
	policyCommentTask = auth.RequirePermission(auth.PermCommentTask)
)
