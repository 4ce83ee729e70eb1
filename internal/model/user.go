package model

// Role 调用方角色
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleCustomer Role = "customer"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleCustomer
}

// Privileged 管理员（运营侧）为特权角色
func (r Role) Privileged() bool {
	return r == RoleAdmin
}
