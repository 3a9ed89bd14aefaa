package domain

// Role is the authorization role carried in the caller's token
type Role string

const (
	RoleAdmin        Role = "admin"
	RoleStoreManager Role = "store_manager"
	RoleUser         Role = "user"
)
