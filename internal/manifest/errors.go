package manifest

import "errors"

// ErrInvalidManifest is returned for documents that violate the manifest structure.
var ErrInvalidManifest = errors.New("invalid manifest")
