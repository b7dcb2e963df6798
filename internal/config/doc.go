// Package config handles configuration loading for the edushare console clients.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from EDUSHARE_CONFIG environment variable
//  2. ~/.config/edushare/config.yaml
//
// A missing default file is not an error; every field has a default.
// Files with a .toml extension are parsed as TOML.
//
// # Environment Variable Expansion
//
//	api:
//	  base_url: "${EDUSHARE_API}"
//
// EDUSHARE_API_URL, when set, overrides api.base_url after loading.
//
// # Configuration Sections
//
//	api:
//	  base_url: "http://localhost:8000/api/v1"
//	  timeout: "30s"            # empty: no client timeout
//
//	session:
//	  state_path: "~/.config/edushare/state.db"
//	  admin_key: "admin_token"
//	  portal_key: "token"
//
//	admin:
//	  role: "admin"             # role claim value granting console access
//
//	pagination:
//	  size: 20
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
package config
