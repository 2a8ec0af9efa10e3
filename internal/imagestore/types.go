package imagestore

// RuntimeConfig is the subset of the OCI image config the launcher needs,
// read lazily from an image's config.json (spec's data model §3).
type RuntimeConfig struct {
	Cmd        []string `json:"Cmd"`
	Env        []string `json:"Env"`
	WorkingDir string   `json:"WorkingDir"`
}

// imageConfigFile mirrors config.json's top-level shape: {"config": {...}}.
type imageConfigFile struct {
	Config RuntimeConfig `json:"config"`
}

// Image describes one resolved img_<uuid> directory.
type Image struct {
	ID   string // full uuid
	Dir  string // absolute path to img_<uuid>
	Src  string // contents of src.txt, "<name>:<tag>"
}
