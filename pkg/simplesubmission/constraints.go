package simplesubmission

import (
	"fmt"
	"path/filepath"
	"strings"
)

// mimePrefixCategories maps MIME type prefixes to file categories, in the
// order they are consulted during inference.
var mimePrefixCategories = []struct {
	prefix   string
	category Category
}{
	{"video/", CategoryVideo},
	{"image/", CategoryImage},
	{"audio/", CategoryAudio},
}

// InferCategory resolves the category discriminant for a constraint spec:
// an explicit nested block wins (video, then image, then audio), otherwise
// the first allowed MIME type with a recognized prefix decides, otherwise
// the category is "other".
func InferCategory(spec *ConstraintSpec) Category {
	if spec.Video != nil {
		return CategoryVideo
	}
	if spec.Image != nil {
		return CategoryImage
	}
	if spec.Audio != nil {
		return CategoryAudio
	}
	for _, t := range spec.AllowedTypes {
		for _, pc := range mimePrefixCategories {
			if strings.HasPrefix(t, pc.prefix) {
				return pc.category
			}
		}
	}
	return CategoryOther
}

// NormalizeExtension lowercases an extension and ensures a leading dot.
func NormalizeExtension(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return ""
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

// Normalize canonicalizes the spec in place: extensions are lowercased with
// a leading dot, and the category discriminant is resolved. Called once at
// form creation/update time.
func (c *ConstraintSpec) Normalize() {
	exts := c.AllowedExtensions[:0]
	for _, ext := range c.AllowedExtensions {
		if n := NormalizeExtension(ext); n != "" {
			exts = append(exts, n)
		}
	}
	c.AllowedExtensions = exts
	c.Category = InferCategory(c)
}

// Validate checks the spec's internal consistency.
func (c *ConstraintSpec) Validate() error {
	if c.MinSizeBytes != nil && *c.MinSizeBytes < 0 {
		return fmt.Errorf("minSizeBytes must be non-negative")
	}
	if c.MaxSizeBytes != nil {
		if *c.MaxSizeBytes < 0 {
			return fmt.Errorf("maxSizeBytes must be non-negative")
		}
		if *c.MaxSizeBytes > MaxUploadSizeBytes {
			return fmt.Errorf("maxSizeBytes %d exceeds the %d byte limit", *c.MaxSizeBytes, MaxUploadSizeBytes)
		}
	}
	if c.MinSizeBytes != nil && c.MaxSizeBytes != nil && *c.MinSizeBytes > *c.MaxSizeBytes {
		return fmt.Errorf("minSizeBytes %d exceeds maxSizeBytes %d", *c.MinSizeBytes, *c.MaxSizeBytes)
	}

	blocks := 0
	if c.Image != nil {
		blocks++
	}
	if c.Video != nil {
		blocks++
	}
	if c.Audio != nil {
		blocks++
	}
	if blocks > 1 {
		return fmt.Errorf("at most one of image, video, audio constraint blocks may be set")
	}

	return nil
}

// allowsFile reports whether the filename/MIME pair satisfies the spec's
// allow-lists. Empty lists on both mean allow-all; when either list is
// present, membership in at least one present list suffices (extension and
// MIME checks are OR-ed through a single ok flag).
func (c *ConstraintSpec) allowsFile(filename, mimeType string) bool {
	if len(c.AllowedTypes) == 0 && len(c.AllowedExtensions) == 0 {
		return true
	}

	ok := false
	if mimeType != "" {
		for _, t := range c.AllowedTypes {
			if t == mimeType {
				ok = true
				break
			}
		}
	}
	if !ok && len(c.AllowedExtensions) > 0 {
		ext := fileExtension(filename)
		for _, allowed := range c.AllowedExtensions {
			if ext == allowed {
				ok = true
				break
			}
		}
	}
	return ok
}

// fileExtension returns the lowercase extension of filename including the
// leading dot, or "" when there is none.
func fileExtension(filename string) string {
	return strings.ToLower(filepath.Ext(filename))
}
