package catalog

import "github.com/jamesainslie/ibackup/pkg/ibackup/property"

// Row is an undecoded Files table row.
type Row struct {
	FileID       string
	Domain       string
	RelativePath string
	Blob         []byte
}

// Record is one resolved catalog entry. RealPath is set only when path
// resolution ran; Info only when metadata decoding ran.
type Record struct {
	FileID       string        `json:"fileID" yaml:"fileID"`
	Domain       string        `json:"domain" yaml:"domain"`
	RelativePath string        `json:"relativePath" yaml:"relativePath"`
	RealPath     string        `json:"path,omitempty" yaml:"path,omitempty"`
	Info         property.Dict `json:"info,omitempty" yaml:"info,omitempty"`
}

// Size returns the file size recorded in the decoded metadata. Archived
// MBFile blobs keep it on the second object; plain dictionaries at the top.
// Records without metadata report zero.
func (r Record) Size() int64 {
	if r.Info == nil {
		return 0
	}
	if v := r.Info.Get("$objects").Index(1).Get("Size"); v.Kind() == property.KindInteger {
		return v.Int(0)
	}
	return r.Info.Get("Size").Int(0)
}

// App returns the bundle identifier when the record lives in an app
// container domain.
func (r Record) App() (string, bool) {
	return AppFromDomain(r.Domain)
}
