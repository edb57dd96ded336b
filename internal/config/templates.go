package config

import (
	"fmt"
	"os"
	"strings"
)

func Template(kind string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case RoleController:
		return controllerTemplate, nil
	case RoleNode:
		return nodeTemplate, nil
	default:
		return "", fmt.Errorf("unknown config kind: %s", kind)
	}
}

func WriteTemplate(path, kind string, overwrite bool) error {
	template, err := Template(kind)
	if err != nil {
		return err
	}
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(template), 0o600)
}

const controllerTemplate = `id = "controller.studio"
role = "controller"
origin = "https://studio.local"
codec = "json"

[relay]
url = "ws://localhost:8000/"
realm = "framelink"

[admin]
addr = ":9300"
cors_origins = ["http://localhost:3000"]

[[nodes]]
id = "node.preview"
address = "node.preview"
origin = "*"
`

const nodeTemplate = `id = "node.preview"
role = "node"
origin = "https://preview.local"
codec = "json"
controller_id = "controller.studio"
controller_origin = "https://studio.local"

[relay]
url = "ws://localhost:8000/"
realm = "framelink"
`
