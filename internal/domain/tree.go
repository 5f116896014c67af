package domain

import "sort"

// CategoryNode is a category with its subcategories and products attached.
type CategoryNode struct {
	Category
	Children []*CategoryNode `json:"children"`
	Products []*Product      `json:"products"`
}

// BuildTree assembles the flat category and product lists into a forest.
// Categories whose parent is missing are treated as top-level. Products
// without a known category are returned as unassigned. Categories caught in
// a parent cycle are unreachable from any root and are left out. Siblings
// and products are ordered by name.
func BuildTree(categories []*Category, products []*Product) ([]*CategoryNode, []*Product) {
	nodes := make(map[int64]*CategoryNode, len(categories))
	for _, c := range categories {
		nodes[c.ID] = &CategoryNode{
			Category: *c,
			Children: []*CategoryNode{},
			Products: []*Product{},
		}
	}

	roots := []*CategoryNode{}
	for _, c := range categories {
		node := nodes[c.ID]
		if c.ParentID == nil {
			roots = append(roots, node)
			continue
		}
		parent, ok := nodes[*c.ParentID]
		if !ok {
			roots = append(roots, node)
			continue
		}
		parent.Children = append(parent.Children, node)
	}

	unassigned := []*Product{}
	for _, p := range products {
		if p.CategoryID != nil {
			if node, ok := nodes[*p.CategoryID]; ok {
				node.Products = append(node.Products, p)
				continue
			}
		}
		unassigned = append(unassigned, p)
	}

	sortProducts(unassigned)
	sortNodes(roots, make(map[int64]bool, len(nodes)))

	return roots, unassigned
}

func sortNodes(nodes []*CategoryNode, visited map[int64]bool) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].ID < nodes[j].ID
	})
	for _, n := range nodes {
		if visited[n.ID] {
			continue
		}
		visited[n.ID] = true
		sortProducts(n.Products)
		sortNodes(n.Children, visited)
	}
}

func sortProducts(products []*Product) {
	sort.Slice(products, func(i, j int) bool {
		if products[i].Name != products[j].Name {
			return products[i].Name < products[j].Name
		}
		return products[i].ID < products[j].ID
	})
}

// ParentLookup returns the parent id of a category, or nil for a top-level one.
type ParentLookup func(id int64) (*int64, error)

// CheckMove verifies that placing categoryID below newParentID keeps the tree
// acyclic. It walks parent pointers upward from newParentID and fails with
// ErrCycle if categoryID is met. The walk gives up after maxSteps hops, which
// only happens when the stored tree already contains a cycle; that case is
// rejected as well.
func CheckMove(categoryID int64, newParentID *int64, parentOf ParentLookup, maxSteps int) error {
	if newParentID == nil {
		return nil
	}

	current := *newParentID
	for steps := 0; ; steps++ {
		if current == categoryID {
			return ErrCycle
		}
		if steps >= maxSteps {
			return ErrCycle
		}

		parent, err := parentOf(current)
		if err != nil {
			return err
		}
		if parent == nil {
			return nil
		}
		current = *parent
	}
}
