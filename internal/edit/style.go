package edit

// StyleFields names the text style fields an UpdateStyle operation writes.
// Everything else on the target text is left as it is.
const StyleFields = "italic,foregroundColor"

// Color is an RGB color with channels in [0, 1]. The zero value is black.
type Color struct {
	Blue  float64 `json:"blue"`
	Green float64 `json:"green"`
	Red   float64 `json:"red"`
}

// Gray is the foreground color used for previewed suggestions.
var Gray = Color{Blue: 0.5, Green: 0.5, Red: 0.5}

// TextStyle is the subset of text styling this service writes. The zero
// value is non-italic black.
type TextStyle struct {
	Italic bool  `json:"italic"`
	Color  Color `json:"color"`
}

// PreviewStyle marks tentative suggestion text.
var PreviewStyle = TextStyle{Italic: true, Color: Gray}

// DefaultStyle is committed text: non-italic, black.
var DefaultStyle = TextStyle{}
