package worker

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
)

// Operations lists every scope.type the dispatcher understands.
var Operations = []string{
	"zbox.initEnv", "zbox.version", "zbox.randomUint32", "zbox.exists", "zbox.openRepo", "zbox.repairSuperBlock", "zbox.destroy",
	"repo.close", "repo.info", "repo.resetPassword", "repo.pathExists", "repo.isFile", "repo.isDir", "repo.createFile", "repo.openFile", "repo.createDir", "repo.createDirAll", "repo.readDir", "repo.metadata", "repo.history", "repo.removeFile", "repo.removeDir", "repo.removeDirAll", "repo.copy", "repo.copyDirAll", "repo.rename",
	"file.close", "file.read", "file.readAll", "file.readAllString", "file.write", "file.finish", "file.writeOnce", "file.seek", "file.setLen", "file.currVersion", "file.metadata", "file.history", "file.versionReader",
	"versionReader.close", "versionReader.version", "versionReader.read", "versionReader.readAll", "versionReader.readAllString", "versionReader.seek",
}

// ParamTypes lists the parameter shape of each structured message type,
// keyed by "scope.type". Types taking a bare string or integer are absent.
var ParamTypes = map[string]any{
	"zbox.initEnv":          InitEnvParams{},
	"zbox.openRepo":         OpenRepoParams{},
	"zbox.repairSuperBlock": CredentialParams{},
	"repo.resetPassword":    ResetPasswordParams{},
	"repo.openFile":         OpenFileParams{},
	"repo.copy":             FromToParams{},
	"repo.copyDirAll":       FromToParams{},
	"repo.rename":           FromToParams{},
	"file.read":             ReadParams{},
	"file.write":            WriteParams{},
	"file.writeOnce":        WriteParams{},
	"file.seek":             SeekParams{},
	"versionReader.read":    ReadParams{},
	"versionReader.seek":    SeekParams{},
}

// Schema returns the JSON Schema of Message.
func Schema() ([]byte, error) {
	return generate(&Message{})
}

// ParamsSchema returns the JSON Schema of the params for scope.type.
func ParamsSchema(scope, typ string) ([]byte, error) {
	model, ok := ParamTypes[scope+"."+typ]
	if !ok {
		return nil, fmt.Errorf("no structured params for %s.%s", scope, typ)
	}
	return generate(model)
}

func generate(v any) ([]byte, error) {
	reflector := jsonschema.Reflector{
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return data, nil
}
