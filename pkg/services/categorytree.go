package services

import (
	"context"

	"khoomi-api-io/catalog/pkg/errs"
	"khoomi-api-io/catalog/pkg/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TreeStrategy string

const (
	// TreeBulk loads every category once and assembles the tree in memory.
	TreeBulk TreeStrategy = "bulk"
	// TreeWalk issues one FindByParent per node.
	TreeWalk TreeStrategy = "walk"
)

// TreeBuilder materialises the nested category tree below a parent.
type TreeBuilder struct {
	store    CategoryStore
	strategy TreeStrategy
}

func NewTreeBuilder(store CategoryStore, strategy TreeStrategy) *TreeBuilder {
	if strategy != TreeWalk {
		strategy = TreeBulk
	}
	return &TreeBuilder{store: store, strategy: strategy}
}

// Build returns the forest below parent (the roots when parent is nil).
// An empty level yields an empty, non-nil slice. Both strategies produce the
// same shape and the same sibling order.
func (b *TreeBuilder) Build(ctx context.Context, parent *primitive.ObjectID) ([]*models.TreeNode, error) {
	if b.strategy == TreeWalk {
		return b.walk(ctx, parent)
	}
	return b.bulk(ctx, parent)
}

type pendingLevel struct {
	parent *primitive.ObjectID
	into   *[]*models.TreeNode
}

func (b *TreeBuilder) walk(ctx context.Context, parent *primitive.ObjectID) ([]*models.TreeNode, error) {
	roots := []*models.TreeNode{}
	visited := make(map[primitive.ObjectID]bool)
	if parent != nil {
		visited[*parent] = true
	}
	queue := []pendingLevel{{parent: parent, into: &roots}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, errs.Store(err, "build category tree")
		}
		level := queue[0]
		queue = queue[1:]

		categories, err := b.store.FindByParent(ctx, level.parent)
		if err != nil {
			return nil, err
		}
		for _, category := range categories {
			if visited[category.ID] {
				continue
			}
			visited[category.ID] = true

			node := models.NewTreeNode(category)
			*level.into = append(*level.into, node)
			id := category.ID
			queue = append(queue, pendingLevel{parent: &id, into: &node.Children})
		}
	}
	return roots, nil
}

func (b *TreeBuilder) bulk(ctx context.Context, parent *primitive.ObjectID) ([]*models.TreeNode, error) {
	categories, err := b.store.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return AssembleTree(categories, parent), nil
}

// AssembleTree arranges categories (in natural order) into the forest below parent.
// Categories unreachable from parent, including members of a parent cycle, are left out.
func AssembleTree(categories []*models.Category, parent *primitive.ObjectID) []*models.TreeNode {
	var rootKey primitive.ObjectID
	if parent != nil {
		rootKey = *parent
	}

	byParent := make(map[primitive.ObjectID][]*models.Category)
	for _, category := range categories {
		var key primitive.ObjectID
		if !category.IsRoot() {
			key = *category.Parent
		}
		byParent[key] = append(byParent[key], category)
	}

	roots := []*models.TreeNode{}
	visited := make(map[primitive.ObjectID]bool)
	if parent != nil {
		visited[rootKey] = true
	}
	stack := []pendingLevel{{parent: &rootKey, into: &roots}}

	for len(stack) > 0 {
		level := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		for _, category := range byParent[*level.parent] {
			if visited[category.ID] {
				continue
			}
			visited[category.ID] = true

			node := models.NewTreeNode(category)
			*level.into = append(*level.into, node)
			id := category.ID
			stack = append(stack, pendingLevel{parent: &id, into: &node.Children})
		}
	}
	return roots
}

// FlattenTree lists every node depth-first, parents before children.
func FlattenTree(nodes []*models.TreeNode) []*models.TreeNode {
	var result []*models.TreeNode
	stack := make([]*models.TreeNode, 0, len(nodes))
	for i := len(nodes) - 1; i >= 0; i-- {
		stack = append(stack, nodes[i])
	}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		result = append(result, node)
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}
	return result
}

// TreeDeleter removes every descendant of a category, deepest first.
type TreeDeleter struct {
	store CategoryStore
}

func NewTreeDeleter(store CategoryStore) *TreeDeleter {
	return &TreeDeleter{store: store}
}

type deleteFrame struct {
	id       primitive.ObjectID
	expanded bool
}

// DeleteDescendants deletes the subtree below id but not id itself.
// A missing id is a no-op. Children are discovered through the record's
// children list and through parent pointers, so a child whose back-reference
// was lost by an earlier partial failure is removed as well.
func (d *TreeDeleter) DeleteDescendants(ctx context.Context, id primitive.ObjectID) (int, error) {
	root, err := d.store.FindByID(ctx, id)
	if errs.Is(err, errs.NotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	seen := map[primitive.ObjectID]bool{id: true}
	stack := []deleteFrame{{id: root.ID}}

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return removed, errs.Store(err, "delete category tree")
		}
		top := &stack[len(stack)-1]

		if top.expanded {
			current := top.id
			stack = stack[:len(stack)-1]
			if current == id {
				continue
			}
			err := d.store.Delete(ctx, current)
			if err != nil && !errs.Is(err, errs.NotFound) {
				return removed, err
			}
			if err == nil {
				removed++
			}
			continue
		}

		top.expanded = true
		children, err := d.childrenOf(ctx, top.id)
		if err != nil {
			return removed, err
		}
		for i := len(children) - 1; i >= 0; i-- {
			child := children[i]
			if seen[child] {
				continue
			}
			seen[child] = true
			stack = append(stack, deleteFrame{id: child})
		}
	}
	return removed, nil
}

func (d *TreeDeleter) childrenOf(ctx context.Context, id primitive.ObjectID) ([]primitive.ObjectID, error) {
	var listed []primitive.ObjectID
	category, err := d.store.FindByID(ctx, id)
	switch {
	case errs.Is(err, errs.NotFound):
	case err != nil:
		return nil, err
	default:
		listed = append(listed, category.Children...)
	}

	pointing, err := d.store.FindByParent(ctx, &id)
	if err != nil {
		return nil, err
	}
	for _, child := range pointing {
		found := false
		for _, l := range listed {
			if l == child.ID {
				found = true
				break
			}
		}
		if !found {
			listed = append(listed, child.ID)
		}
	}
	return listed, nil
}
