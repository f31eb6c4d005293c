package domain

// PublishedRepresentation is one representation produced by an earlier
// integrator whose files are aggregated by the root layer.
type PublishedRepresentation struct {
	ID             string   `json:"id,omitempty"`
	Name           string   `json:"name,omitempty"`
	PublishedFiles []string `json:"published_files" validate:"dive,required"`
}

// PublishRequest describes a finished artifact set plus the context it was
// published in.
type PublishRequest struct {
	ProjectName  string `json:"project_name" validate:"required"`
	FolderPath   string `json:"folder_path" validate:"required"`
	TaskID       string `json:"task_id,omitempty"`
	TaskName     string `json:"task_name,omitempty"`
	ProductType  string `json:"product_type" validate:"required"`
	Family       string `json:"family,omitempty"`
	ProductGroup string `json:"product_group,omitempty"`

	Author  string `json:"author" validate:"required"`
	Comment string `json:"comment"`
	Machine string `json:"machine,omitempty"`
	// Time is the publish timestamp of the whole run; identical requests must
	// carry identical times to reconcile to a no-op.
	Time string `json:"time,omitempty"`
	// Intent is either a plain value or an object with a "value" key.
	Intent any `json:"intent,omitempty"`

	FPS          *float64 `json:"fps,omitempty"`
	FrameStart   *int     `json:"frame_start,omitempty"`
	FrameEnd     *int     `json:"frame_end,omitempty"`
	Step         *int     `json:"step,omitempty"`
	HandleStart  *int     `json:"handle_start,omitempty"`
	HandleEnd    *int     `json:"handle_end,omitempty"`
	SourceHashes []string `json:"source_hashes,omitempty"`

	// VersionData is merged into the version data last and wins on conflicts.
	VersionData map[string]any `json:"version_data,omitempty"`
	// RepresentationData is extra data for the root representation; keys
	// declared by the attribute schema become attributes.
	RepresentationData map[string]any `json:"representation_data,omitempty"`

	Representations []PublishedRepresentation `json:"published_representations" validate:"dive"`
}

// PublishedFiles flattens the published files of every representation in
// request order.
func (r *PublishRequest) PublishedFiles() []string {
	var files []string
	for _, repre := range r.Representations {
		files = append(files, repre.PublishedFiles...)
	}
	return files
}

// PublishResult reports what a publish run resolved and changed.
type PublishResult struct {
	Skipped           bool               `json:"skipped"`
	ProjectName       string             `json:"project_name"`
	FolderID          string             `json:"folder_id,omitempty"`
	ProductID         string             `json:"product_id,omitempty"`
	ProductName       string             `json:"product_name,omitempty"`
	VersionID         string             `json:"version_id,omitempty"`
	Version           int                `json:"version,omitempty"`
	RootPath          string             `json:"root_path,omitempty"`
	RepresentationIDs map[string]string  `json:"representation_ids,omitempty"`
	Created           map[EntityKind]int `json:"created,omitempty"`
	Updated           map[EntityKind]int `json:"updated,omitempty"`
	Mirrored          string             `json:"mirrored,omitempty"`
}
