package models

// Format identifies which streaming package an artifact belongs to.
type Format string

const (
	FormatDASH   Format = "dash" // manifest format A
	FormatHLS    Format = "hls"  // playlist format B
	FormatShared Format = "shared"
	FormatNone   Format = ""
)

// Role is what an artifact is within its format.
type Role string

const (
	RoleManifest     Role = "manifest"
	RoleInitSegment  Role = "init-segment"
	RoleMediaSegment Role = "media-segment"
	RoleThumbnail    Role = "thumbnail"
	RoleUnrelated    Role = "unrelated"
)

// OutputArtifact is a local file produced by the encoder or thumbnail step
// together with the object key it will be published under.
type OutputArtifact struct {
	LocalPath string `json:"local_path"`
	Filename  string `json:"filename"`
	Format    Format `json:"format"`
	Role      Role   `json:"role"`
	RemoteKey string `json:"remote_key"`
	Size      int64  `json:"size"`
}
