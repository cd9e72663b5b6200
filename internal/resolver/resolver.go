// Package resolver picks the representative image of an HTML page from its
// OpenGraph and Twitter card metadata.
//
// Resolution is pure: no I/O, no shared mutable state. It is safe to call
// from any number of goroutines.
package resolver

// ImageResolver finds the main image of an already-fetched page.
type ImageResolver interface {
	MainImage(pageURL, html string) (string, bool)
}

// OpenGraphResolver resolves images from og:image, image_src and
// twitter:image declarations.
type OpenGraphResolver struct{}

// New returns an OpenGraphResolver.
func New() *OpenGraphResolver {
	return &OpenGraphResolver{}
}

// MainImage implements ImageResolver.
func (r *OpenGraphResolver) MainImage(pageURL, html string) (string, bool) {
	return MainImage(pageURL, html)
}

// Resolve implements the detailed variant used for diagnostics.
func (r *OpenGraphResolver) Resolve(pageURL, html string) *Resolution {
	return Resolve(pageURL, html)
}

// Resolution records how a page's main image was picked.
type Resolution struct {
	PageURL    string      `json:"page_url"`
	Candidates []Candidate `json:"candidates"`
	// Chosen indexes Candidates; -1 when nothing was chosen.
	Chosen   int    `json:"chosen"`
	ImageURL string `json:"image_url,omitempty"`
	Found    bool   `json:"found"`
}

// ChosenCandidate returns the selected candidate, or nil.
func (r *Resolution) ChosenCandidate() *Candidate {
	if r == nil || r.Chosen < 0 || r.Chosen >= len(r.Candidates) {
		return nil
	}
	return &r.Candidates[r.Chosen]
}

// Resolve runs every stage and keeps the intermediate results. The chosen
// candidate is reported even when its src fails to normalize.
func Resolve(pageURL, html string) *Resolution {
	res := &Resolution{PageURL: pageURL, Chosen: -1}

	doc := parseDocument(pageURL, html)
	if doc == nil {
		return res
	}

	res.Candidates = ExtractCandidates(doc)
	res.Chosen = Choose(res.Candidates)
	if res.Chosen < 0 {
		return res
	}

	res.ImageURL, res.Found = Normalize(pageURL, res.Candidates[res.Chosen].Src)
	return res
}

// MainImage returns the absolute URL of the page's main image. The second
// result is false when the page declares none or its src cannot be resolved.
func MainImage(pageURL, html string) (string, bool) {
	res := Resolve(pageURL, html)
	return res.ImageURL, res.Found
}
