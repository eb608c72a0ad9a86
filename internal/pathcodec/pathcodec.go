// Package pathcodec converts between the two addressing schemes for a
// page: the vault-relative filesystem path (/PageA/PageB/PageB.md) and
// the compact colon identifier (PageA:PageB).
//
// Each page lives in a folder bearing the same name, so the final path
// segment duplicates its parent folder. The codec collapses that
// duplicate when rendering an identifier and reintroduces it when
// rendering a path, which keeps the two forms losslessly
// interconvertible.
package pathcodec

import "strings"

// PageSuffix is the file extension of page files inside the vault.
const PageSuffix = ".md"

// PathToID converts a page path like /PageA/PageB/PageB.md to the colon
// identifier PageA:PageB. Segment case and whitespace are preserved.
// Empty and root paths yield the empty identifier.
func PathToID(path string) string {
	cleaned := strings.Trim(strings.TrimSpace(path), "/")
	if cleaned == "" {
		return ""
	}
	parts := strings.Split(cleaned, "/")
	last := len(parts) - 1
	parts[last] = strings.TrimSuffix(parts[last], PageSuffix)
	if len(parts) >= 2 && parts[last] == parts[last-1] {
		parts = parts[:last]
	}
	return strings.Join(parts, ":")
}

// IDToPath converts a colon identifier to its page path, accepting both
// anchored (":PageA:PageB") and unanchored forms and discarding any
// "#heading" suffix. The empty identifier maps to the vault root page
// when rootName is given, and to "/" otherwise. The root page is the
// one page stored without an enclosing folder, so the identifier equal
// to rootName maps back to /rootName.md, keeping the round trip with
// PathToID closed.
func IDToPath(id, rootName string) string {
	base := stripAnchor(strings.TrimPrefix(strings.TrimSpace(id), ":"))
	if base == "" {
		if rootName != "" {
			return "/" + rootName + PageSuffix
		}
		return "/"
	}
	if rootName != "" && base == rootName {
		return "/" + rootName + PageSuffix
	}
	parts := strings.Split(base, ":")
	leaf := parts[len(parts)-1]
	return "/" + strings.Join(parts, "/") + "/" + leaf + PageSuffix
}

// IDToFolderPath converts a colon identifier to the folder holding the
// page file, without the trailing page-file segment.
func IDToFolderPath(id string) string {
	base := stripAnchor(strings.TrimPrefix(strings.TrimSpace(id), ":"))
	if base == "" {
		return "/"
	}
	return "/" + strings.Join(strings.Split(base, ":"), "/")
}

// NormalizeLinkTarget lower-cases and underscore-joins each non-anchor
// segment of a link target independently, collapsing internal
// whitespace. A leading root-anchor ":" and a trailing "#anchor" are
// preserved verbatim.
func NormalizeLinkTarget(raw string) string {
	text := strings.TrimSpace(raw)
	if text == "" {
		return ""
	}
	anchored := strings.HasPrefix(text, ":")
	if anchored {
		text = text[1:]
	}
	base := text
	anchor := ""
	if i := strings.Index(text, "#"); i >= 0 {
		base, anchor = text[:i], text[i:]
	}
	segs := strings.Split(base, ":")
	for i, seg := range segs {
		segs[i] = strings.Join(strings.Fields(strings.ToLower(seg)), "_")
	}
	out := strings.Join(segs, ":")
	if anchored {
		out = ":" + out
	}
	return out + anchor
}

// EnsureRootAnchor prefixes a link with the root anchor ":" unless it is
// already anchored or is a pure "#heading" anchor.
func EnsureRootAnchor(link string) string {
	text := strings.TrimSpace(link)
	if text == "" || strings.HasPrefix(text, ":") || strings.HasPrefix(text, "#") {
		return text
	}
	return ":" + text
}

// CollapseDuplicateLeaf rewrites a path ending in .../Leaf/Leaf.md to
// .../Leaf.md. Paths without the duplicate-leaf shape pass through
// unchanged.
func CollapseDuplicateLeaf(path string) string {
	cleaned := strings.TrimLeft(strings.TrimSpace(path), "/")
	if cleaned == "" || !strings.HasSuffix(cleaned, PageSuffix) {
		return path
	}
	parts := strings.Split(cleaned, "/")
	if len(parts) < 2 {
		return path
	}
	leaf := strings.TrimSuffix(parts[len(parts)-1], PageSuffix)
	if leaf != parts[len(parts)-2] {
		return path
	}
	collapsed := append(parts[:len(parts)-2], leaf+PageSuffix)
	return "/" + strings.Join(collapsed, "/")
}

// RebasePath moves a page path from one folder prefix to another. When
// the page is the root page of the moved folder, its file is renamed to
// match the new folder leaf so the folder-per-page invariant holds.
func RebasePath(pagePath, oldFolder, newFolder string) string {
	oldClean := strings.Trim(strings.TrimSpace(oldFolder), "/")
	newClean := strings.Trim(strings.TrimSpace(newFolder), "/")
	pageClean := strings.TrimLeft(pagePath, "/")

	pageFolder := pageClean
	if i := strings.LastIndex(pageClean, "/"); i >= 0 {
		pageFolder = pageClean[:i]
	} else {
		pageFolder = ""
	}
	if pageFolder != oldClean && !strings.HasPrefix(pageFolder, oldClean+"/") {
		return pagePath
	}

	rel := strings.TrimPrefix(strings.TrimPrefix(pageFolder, oldClean), "/")
	newBase := newClean
	if rel != "" {
		newBase += "/" + rel
	}
	if pageFolder == oldClean {
		// Root page of the moved folder: rename to the new leaf.
		leaf := newBase[strings.LastIndex(newBase, "/")+1:]
		return "/" + newBase + "/" + leaf + PageSuffix
	}
	file := pageClean[strings.LastIndex(pageClean, "/")+1:]
	return "/" + newBase + "/" + file
}

func stripAnchor(s string) string {
	if i := strings.Index(s, "#"); i >= 0 {
		return s[:i]
	}
	return s
}
