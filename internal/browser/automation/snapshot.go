// internal/browser/automation/snapshot.go
package automation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"golang.org/x/net/html"
)

// interactiveSelectors matches the element classes the inference layer can
// meaningfully act on.
const interactiveSelectors = `a[href], button, input, select, textarea, [onclick], [role=button], [role=link], [tabindex]`

// snapshotScript collects interactive elements with stable selectors. Elements
// without an id get a structural nth-of-type path.
const snapshotScript = `
(function() {
    function cssPath(node) {
        if (node.id) return '#' + CSS.escape(node.id);
        const parts = [];
        while (node && node.nodeType === Node.ELEMENT_NODE && node !== document.body) {
            let part = node.tagName.toLowerCase();
            let sibling = node, nth = 1;
            while ((sibling = sibling.previousElementSibling)) {
                if (sibling.tagName === node.tagName) nth++;
            }
            part += ':nth-of-type(' + nth + ')';
            parts.unshift(part);
            node = node.parentElement;
        }
        return 'body > ' + parts.join(' > ');
    }
    const found = [];
    const nodes = document.querySelectorAll(%s);
    for (const node of nodes) {
        const rect = node.getBoundingClientRect();
        if (rect.width === 0 || rect.height === 0) continue;
        found.push({
            selector: cssPath(node),
            tag: node.tagName.toLowerCase(),
            role: node.getAttribute('role') || '',
            text: (node.innerText || node.value || node.getAttribute('aria-label') || '').trim().slice(0, 120)
        });
        if (found.length >= %d) break;
    }
    return { url: location.href, title: document.title, elements: found };
})();
`

// maxSnapshotElements bounds the context handed to the inference layer.
const maxSnapshotElements = 150

// Snapshot captures the current interactive surface of a page.
func Snapshot(ctx context.Context, page Page) (*DOMSnapshot, error) {
	expr := fmt.Sprintf(snapshotScript, jsonEncode(interactiveSelectors), maxSnapshotElements)

	var raw json.RawMessage
	if err := page.Evaluate(ctx, expr, &raw); err != nil {
		return nil, fmt.Errorf("snapshot evaluation: %w", err)
	}

	var snap DOMSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("snapshot decode: %w", err)
	}
	return &snap, nil
}

// maxPageText bounds the text handed to extraction prompts.
const maxPageText = 32 * 1024

// PageText renders the page's markup down to readable text for extraction.
// Script and style subtrees are skipped; block boundaries become newlines.
func PageText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return markup
	}

	var b strings.Builder
	var walk func(n *html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.ElementNode:
			switch n.Data {
			case "script", "style", "noscript", "template":
				return
			case "p", "div", "li", "tr", "br", "h1", "h2", "h3", "h4", "h5", "h6", "section", "article":
				b.WriteByte('\n')
			}
		case html.TextNode:
			text := strings.TrimSpace(n.Data)
			if text != "" {
				b.WriteString(text)
				b.WriteByte(' ')
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	text := strings.TrimSpace(b.String())
	if len(text) > maxPageText {
		text = text[:maxPageText]
	}
	return text
}
