package models

// OverlayFile is the full overlay declaration document consumed by the
// overlay-rendering tool: shared templates plus per-movie entries.
type OverlayFile struct {
	Templates map[string]OverlayTemplate `yaml:"templates"`
	Overlays  map[string]OverlayEntry    `yaml:"overlays"`
}

// OverlayTemplate defines the shared visual styling referenced by entries.
type OverlayTemplate struct {
	Overlay          string `yaml:"overlay"` // frame image path
	Builder          string `yaml:"builder"`
	Text             string `yaml:"text"`
	HorizontalOffset int    `yaml:"horizontal_offset"`
	VerticalOffset   int    `yaml:"vertical_offset"`
	Font             string `yaml:"font"`
	FontColor        string `yaml:"font_color"`
	FontSize         int    `yaml:"font_size"`
	BackColor        string `yaml:"back_color"`
}

// OverlayEntry declares an "expected release" badge for one movie.
type OverlayEntry struct {
	Template OverlayTemplateRef `yaml:"template"`
	TMDBID   int64              `yaml:"tmdb_id"`
}

// OverlayTemplateRef binds an entry to a template and its text parameters.
type OverlayTemplateRef struct {
	Name        string `yaml:"name"`
	ReleaseDate string `yaml:"release_date"`
}
