package database

import (
	"context"
	"testing"

	"chmura-plikow/internal/paths"

	"github.com/stretchr/testify/require"
)

// buildTestTree tworzy strukturę: docs/ -> reports/ -> q1.txt oraz docs/readme.md
func buildTestTree(t *testing.T, ownerID int64, prefix string) (docs, reports, q1 string) {
	docsNode := createTestNode(t, CreateNodeParams{ID: prefix + "_docs", OwnerID: ownerID, Name: "docs", NodeType: "folder"})
	reportsNode := createTestNode(t, CreateNodeParams{ID: prefix + "_reports", OwnerID: ownerID, ParentID: &docsNode.ID, Name: "reports", NodeType: "folder"})
	q1Node := createTestNode(t, CreateNodeParams{ID: prefix + "_q1", OwnerID: ownerID, ParentID: &reportsNode.ID, Name: "q1.txt", NodeType: "file"})
	createTestNode(t, CreateNodeParams{ID: prefix + "_readme", OwnerID: ownerID, ParentID: &docsNode.ID, Name: "readme.md", NodeType: "file"})
	return docsNode.ID, reportsNode.ID, q1Node.ID
}

func TestResolvePath(t *testing.T) {
	owner := createTestUser(t, "user_resolve_path")
	docsID, reportsID, q1ID := buildTestTree(t, owner.ID, "resolve")

	node, err := testStore.ResolvePath(context.Background(), owner.ID, "docs")
	require.NoError(t, err)
	require.Equal(t, docsID, node.ID)

	node, err = testStore.ResolvePath(context.Background(), owner.ID, "docs/reports")
	require.NoError(t, err)
	require.Equal(t, reportsID, node.ID)

	node, err = testStore.ResolvePath(context.Background(), owner.ID, "docs/reports/q1.txt")
	require.NoError(t, err)
	require.Equal(t, q1ID, node.ID)
	require.Equal(t, "file", node.NodeType)

	// ścieżka jest normalizowana przed rozwiązaniem
	node, err = testStore.ResolvePath(context.Background(), owner.ID, "/docs//reports\\q1.txt/")
	require.NoError(t, err)
	require.Equal(t, q1ID, node.ID)

	// pusta ścieżka to korzeń
	node, err = testStore.ResolvePath(context.Background(), owner.ID, "")
	require.NoError(t, err)
	require.Nil(t, node)
}

func TestResolvePath_Deterministic(t *testing.T) {
	owner := createTestUser(t, "user_resolve_twice")
	buildTestTree(t, owner.ID, "twice")

	first, err := testStore.ResolvePath(context.Background(), owner.ID, "docs/reports/q1.txt")
	require.NoError(t, err)
	second, err := testStore.ResolvePath(context.Background(), owner.ID, "docs/reports/q1.txt")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
}

func TestResolvePath_NotFound(t *testing.T) {
	owner := createTestUser(t, "user_resolve_missing")
	buildTestTree(t, owner.ID, "missing")

	_, err := testStore.ResolvePath(context.Background(), owner.ID, "docs/nope")
	require.ErrorIs(t, err, ErrNodeNotFound)

	// plik w środku ścieżki nie jest folderem
	_, err = testStore.ResolvePath(context.Background(), owner.ID, "docs/readme.md/deeper")
	require.ErrorIs(t, err, ErrNodeNotFound)

	_, err = testStore.ResolvePath(context.Background(), owner.ID, "docs/bad|name")
	require.ErrorIs(t, err, paths.ErrInvalidName)
}

func TestResolvePath_OwnerScoped(t *testing.T) {
	owner := createTestUser(t, "user_resolve_owner")
	intruder := createTestUser(t, "user_resolve_intruder")
	buildTestTree(t, owner.ID, "scoped")

	_, err := testStore.ResolvePath(context.Background(), intruder.ID, "docs")
	require.ErrorIs(t, err, ErrNodeNotFound)

	_, err = testStore.ResolvePath(context.Background(), intruder.ID, "docs/reports/q1.txt")
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestNodePath(t *testing.T) {
	owner := createTestUser(t, "user_node_path")
	_, _, q1ID := buildTestTree(t, owner.ID, "npath")

	path, err := testStore.NodePath(context.Background(), q1ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, "docs/reports/q1.txt", path)

	// ścieżka wraca do tego samego węzła
	node, err := testStore.ResolvePath(context.Background(), owner.ID, path)
	require.NoError(t, err)
	require.Equal(t, q1ID, node.ID)

	_, err = testStore.NodePath(context.Background(), "no_such_node_idxxxxxx", owner.ID)
	require.ErrorIs(t, err, ErrNodeNotFound)
}

func TestIsDescendantOf(t *testing.T) {
	owner := createTestUser(t, "user_descendant")
	docsID, reportsID, q1ID := buildTestTree(t, owner.ID, "desc")
	other := createTestNode(t, CreateNodeParams{ID: "desc_other_folder_idx", OwnerID: owner.ID, Name: "other", NodeType: "folder"})

	isDesc, err := testStore.IsDescendantOf(context.Background(), docsID, reportsID)
	require.NoError(t, err)
	require.True(t, isDesc)

	isDesc, err = testStore.IsDescendantOf(context.Background(), docsID, q1ID)
	require.NoError(t, err)
	require.True(t, isDesc)

	isDesc, err = testStore.IsDescendantOf(context.Background(), docsID, docsID)
	require.NoError(t, err)
	require.True(t, isDesc, "a node is its own descendant for cycle purposes")

	isDesc, err = testStore.IsDescendantOf(context.Background(), docsID, other.ID)
	require.NoError(t, err)
	require.False(t, isDesc)

	isDesc, err = testStore.IsDescendantOf(context.Background(), reportsID, docsID)
	require.NoError(t, err)
	require.False(t, isDesc, "an ancestor is not a descendant")
}
