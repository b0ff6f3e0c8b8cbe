// Package model 定义了与数据库表对应的 Go 结构体以及跨层共享的领域类型。
package model

import "time"

// RootFolderID 与 AllFolderID 都表示虚拟的根视图，而不是一个真实的文件夹。
const (
	RootFolderID = ""
	AllFolderID  = "all"
)

// IsRootFolder 判断给定 id 是否为根哨兵值。
func IsRootFolder(id string) bool {
	return id == RootFolderID || id == AllFolderID
}

// Folder 对应于数据库中的 'folders' 表。
// 层级关系只通过 ParentID 保存，不持有子节点引用。
type Folder struct {
	ID       string  `gorm:"type:varchar(36);primaryKey" json:"id"`
	Name     string  `gorm:"type:varchar(255);not null" json:"name"`
	ParentID *string `gorm:"type:varchar(36);index" json:"parentId"`
	// ScopeID 仅保存在作用域根文件夹上（部门、分类或个人空间），子文件夹通过列举隐式继承。
	ScopeID      *string   `gorm:"type:varchar(64);index" json:"scopeId"`
	SortIndex    int       `gorm:"not null;default:0" json:"sortIndex"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"createdAt"`
	LastModified time.Time `json:"lastModified"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (Folder) TableName() string {
	return "folders"
}
