package jamf

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/xkilldash9x/jamf-mcp/api/schemas"
)

// Resource is a read-only Classic API collection, e.g. /JSSResource/policies.
type Resource struct {
	// Path is the collection name under /JSSResource.
	Path string
	// Singular names one item, used for tool names and error messages.
	Singular string
}

// Resources are the collections exposed as list/detail lookups, keyed by their
// plural name.
var Resources = map[string]Resource{
	"policies":                   {Path: "policies", Singular: "policy"},
	"configuration_profiles":     {Path: "osxconfigurationprofiles", Singular: "profile"},
	"extension_attributes":       {Path: "computerextensionattributes", Singular: "extension_attribute"},
	"smart_groups":               {Path: "computergroups", Singular: "group"},
	"scripts":                    {Path: "scripts", Singular: "script"},
	"packages":                   {Path: "packages", Singular: "package"},
	"users":                      {Path: "users", Singular: "user"},
	"user_groups":                {Path: "usergroups", Singular: "user_group"},
	"buildings":                  {Path: "buildings", Singular: "building"},
	"departments":                {Path: "departments", Singular: "department"},
	"network_segments":           {Path: "networksegments", Singular: "network_segment"},
	"patch_software_titles":      {Path: "patchsoftwaretitles", Singular: "patch_software_title"},
	"patch_policies":             {Path: "patchpolicies", Singular: "patch_policy"},
	"categories":                 {Path: "categories", Singular: "category"},
	"sites":                      {Path: "sites", Singular: "site"},
	"advanced_computer_searches": {Path: "advancedcomputersearches", Singular: "advanced_computer_search"},
	"restricted_software":        {Path: "restrictedsoftware", Singular: "restricted_software"},
	"licensed_software":          {Path: "licensedsoftware", Singular: "licensed_software"},
	"ldap_servers":               {Path: "ldapservers", Singular: "ldap_server"},
	"directory_bindings":         {Path: "directorybindings", Singular: "directory_binding"},
	"webhooks":                   {Path: "webhooks", Singular: "webhook"},
}

// ResourceNames returns the keys of Resources, sorted.
func ResourceNames() []string {
	names := make([]string, 0, len(Resources))
	for name := range Resources {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ListResource returns the Classic API listing of a collection as decoded JSON.
func (c *Client) ListResource(ctx context.Context, name string) (schemas.Record, error) {
	res, ok := Resources[name]
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", name)
	}
	return c.classicJSON(ctx, res.Path, "/JSSResource/"+res.Path)
}

// GetResource returns one item of a collection by id.
func (c *Client) GetResource(ctx context.Context, name string, id int) (schemas.Record, error) {
	res, ok := Resources[name]
	if !ok {
		return nil, fmt.Errorf("unknown resource %q", name)
	}
	if id <= 0 {
		return nil, fmt.Errorf("invalid %s id %d", res.Singular, id)
	}
	return c.classicJSON(ctx, res.Path, "/JSSResource/"+res.Path+"/id/"+strconv.Itoa(id))
}

func (c *Client) classicJSON(ctx context.Context, label, path string) (schemas.Record, error) {
	body, err := c.get(ctx, label, path, nil, "application/json")
	if err != nil {
		return nil, err
	}
	rec, err := schemas.DecodeRecord(body)
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", label, err)
	}
	return rec, nil
}
