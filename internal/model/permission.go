package model

import "time"

// RoleAdmin 是允许修改文件夹权限的角色。
const RoleAdmin = "ADMIN"

// Principal 是权限计算所需的最小用户视图。
type Principal struct {
	ID       string `json:"id"`
	Division string `json:"division"`
}

// FolderPermission 对应于数据库中的 'folder_permissions' 表。
// 每个文件夹的记录相互独立，不会被子文件夹继承。
// IsPublic 不能带 gorm 默认值，否则 false 会在插入时被替换为默认值。
type FolderPermission struct {
	FolderID         string    `gorm:"type:varchar(36);primaryKey" json:"folderId"`
	IsPublic         bool      `gorm:"not null" json:"isPublic"`
	AllowedUserIDs   []string  `gorm:"type:json;serializer:json" json:"allowedUserIds"`
	AllowedDivisions []string  `gorm:"type:json;serializer:json" json:"allowedDivisions"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (FolderPermission) TableName() string {
	return "folder_permissions"
}

// DefaultPermission 返回没有记录时的默认权限：公开，白名单为空。
func DefaultPermission(folderID string) *FolderPermission {
	return &FolderPermission{
		FolderID:         folderID,
		IsPublic:         true,
		AllowedUserIDs:   []string{},
		AllowedDivisions: []string{},
	}
}

// Allows 判断用户能否访问该文件夹。
// 公开文件夹忽略白名单；否则用户 id 或所属部门命中任一白名单即可。
func (p *FolderPermission) Allows(user Principal) bool {
	if p.IsPublic {
		return true
	}
	for _, id := range p.AllowedUserIDs {
		if user.ID != "" && id == user.ID {
			return true
		}
	}
	for _, d := range p.AllowedDivisions {
		if user.Division != "" && d == user.Division {
			return true
		}
	}
	return false
}
