package resolver

// Source types attached to tag patterns and propagated to candidates.
const (
	SourceFacebook = "facebook"
	SourceTwitter  = "twitter"
)

// TagPattern describes one recognized flavor of metadata image tag.
// An element matches when KeyAttribute equals KeyValue exactly and
// SrcAttribute is present; SrcAttribute then holds the image URL.
type TagPattern struct {
	SourceType   string
	KeyAttribute string
	KeyValue     string
	SrcAttribute string
}

// tagPatterns is the fixed recognition table. Order matters: it decides
// candidate order within a single element.
var tagPatterns = [...]TagPattern{
	// OpenGraph
	{SourceType: SourceFacebook, KeyAttribute: "property", KeyValue: "og:image", SrcAttribute: "content"},
	// legacy Facebook link
	{SourceType: SourceFacebook, KeyAttribute: "rel", KeyValue: "image_src", SrcAttribute: "href"},
	// legacy Twitter card
	{SourceType: SourceTwitter, KeyAttribute: "name", KeyValue: "twitter:image", SrcAttribute: "value"},
	// Twitter card
	{SourceType: SourceTwitter, KeyAttribute: "name", KeyValue: "twitter:image", SrcAttribute: "content"},
}

// Tags returns a copy of the recognition table in match order.
func Tags() []TagPattern {
	out := make([]TagPattern, len(tagPatterns))
	copy(out, tagPatterns[:])
	return out
}
