package aliyuncdn

import (
	"github.com/3leaps/nimbuscdn/pkg/provider"
	"github.com/3leaps/nimbuscdn/pkg/provider/aliyun"
	"github.com/3leaps/nimbuscdn/pkg/workflow"
)

// MaxObjectPaths is the vendor's per-request entry limit for objectPath.
// It is documented to users but enforced by the vendor API, not here.
const MaxObjectPaths = 1000

// integerPrecision marks number properties that only accept integers.
var integerPrecision = 0

// Description implements workflow.NodeType.
func (n *Node) Description() workflow.NodeTypeDescription {
	return workflow.NodeTypeDescription{
		DisplayName: "Aliyun CDN",
		Name:        NodeTypeName,
		Icon:        "file:aliyun.svg",
		Group:       []string{"cloud"},
		Version:     1,
		Subtitle:    `={{$parameter["operation"]}}`,
		Description: "Manage Aliyun CDN cache operations",
		Defaults:    workflow.NodeDefaults{Name: "Aliyun CDN"},
		Inputs:      []workflow.Connection{{Type: workflow.ConnectionMain, Required: true}},
		Outputs:     []workflow.Connection{{Type: workflow.ConnectionMain, Required: true}},
		Credentials: []workflow.CredentialRequirement{
			{Name: aliyun.CredentialType, Required: true},
		},
		Properties: []workflow.NodeProperty{
			{
				DisplayName:      "Operation",
				Name:             "operation",
				Type:             workflow.PropertyOptions,
				NoDataExpression: true,
				Options: []workflow.PropertyOption{
					{
						Name:        "Refresh Object Caches",
						Value:       OperationRefreshObjectCaches.String(),
						Description: "Refresh or purge CDN cached objects by path",
						Action:      "Refresh CDN object caches",
					},
				},
				Default:  OperationRefreshObjectCaches.String(),
				Required: true,
			},
			{
				DisplayName: "Object Paths",
				Name:        "objectPath",
				Type:        workflow.PropertyString,
				TypeOptions: &workflow.TypeOptions{Rows: 4},
				Default:     "",
				Required:    true,
				Placeholder: "https://example.com/path/file.jpg",
				Description: "Enter URLs or directories separated by line breaks (up to 1,000 entries)",
			},
			{
				DisplayName: "Object Type",
				Name:        "objectType",
				Type:        workflow.PropertyOptions,
				Default:     provider.ObjectFile.String(),
				Options: []workflow.PropertyOption{
					{Name: "File", Value: provider.ObjectFile.String()},
					{Name: "Directory", Value: provider.ObjectDirectory.String()},
				},
				Description: "Choose whether to refresh single files or whole directories",
			},
			{
				DisplayName: "Additional Fields",
				Name:        "additionalFields",
				Type:        workflow.PropertyCollection,
				Placeholder: "Add Field",
				Default:     map[string]any{},
				Fields: []workflow.NodeProperty{
					{
						DisplayName: "Force",
						Name:        "force",
						Type:        workflow.PropertyBoolean,
						Default:     false,
						Description: "Whether to force refresh even if the cache is not expired",
					},
					{
						DisplayName: "Owner ID",
						Name:        "ownerId",
						Type:        workflow.PropertyNumber,
						TypeOptions: &workflow.TypeOptions{NumberPrecision: &integerPrecision},
						Default:     0,
					},
					{
						DisplayName: "Security Token",
						Name:        "securityToken",
						Type:        workflow.PropertyString,
						TypeOptions: &workflow.TypeOptions{Password: true},
						Default:     "",
					},
				},
			},
		},
	}
}
