package generator

import (
	"regexp"
	"strings"

	"pdf-translator/internal/types"
)

const (
	fenceMarker       = "```latex"
	endDocumentMarker = `\end{document}`
)

// first fence through the nearest \end{document}
var latexBlockPattern = regexp.MustCompile(`(?s)` + regexp.QuoteMeta(fenceMarker) + `.*?` + regexp.QuoteMeta(endDocumentMarker))

// ExtractLaTeX returns the document embedded in a model response: everything
// after the first "```latex" fence up to and including the next \end{document}.
// The text is returned verbatim. When there is no such block it returns "" and
// an ErrMarkerNotFound error.
func ExtractLaTeX(response string) (string, error) {
	match := latexBlockPattern.FindString(response)
	if match == "" {
		return "", types.NewAppError(types.ErrMarkerNotFound, "no ```latex block ending in \\end{document} found in response", nil)
	}
	return strings.TrimPrefix(match, fenceMarker), nil
}
