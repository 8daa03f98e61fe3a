package models

import (
	"html/template"
	"time"
)

// Entry represents one immediate child of a listed directory
type Entry struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	IsDir   bool      `json:"is_dir"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
	IsImage bool      `json:"is_image,omitempty"`
}

// Listing is a directory partitioned into sub-directories and files
type Listing struct {
	Path        string        `json:"path"`
	Parent      string        `json:"parent"`
	Directories []Entry       `json:"directories"`
	Files       []Entry       `json:"files"`
	Breadcrumbs []Crumb       `json:"breadcrumbs"`
	Readme      template.HTML `json:"-"`
	Disk        DiskStats     `json:"disk"`
}

// Crumb is one segment of the path shown above a listing
type Crumb struct {
	Label string `json:"label"`
	Path  string `json:"path"`
}

// IsRoot reports whether the listing is of the base directory itself.
func (l Listing) IsRoot() bool {
	return l.Path == ""
}
