package database

import (
	"context"
	"fmt"
	"testing"

	"chmura-plikow/internal/models"

	"github.com/stretchr/testify/require"
)

// Funkcja pomocnicza do tworzenia użytkownika na potrzeby testów
func createTestUser(t *testing.T, username string) *models.User {
	var user models.User
	query := `INSERT INTO users (username, password_hash, display_name) VALUES ($1, 'hash', $2)
			  RETURNING id, username, password_hash, display_name, created_at, storage_quota_bytes, storage_used_bytes`
	err := testStore.pool.QueryRow(context.Background(), query, username, fmt.Sprintf("User %s", username)).Scan(
		&user.ID, &user.Username, &user.PasswordHash, &user.DisplayName, &user.CreatedAt,
		&user.StorageQuotaBytes, &user.StorageUsedBytes,
	)
	require.NoError(t, err)
	return &user
}

func createTestNode(t *testing.T, params CreateNodeParams) *models.Node {
	node, err := testStore.CreateNode(context.Background(), params)
	require.NoError(t, err)
	require.NotNil(t, node)
	return node
}

func strPtr(s string) *string { return &s }

func TestCreateNode(t *testing.T) {
	owner := createTestUser(t, "user_create_node")

	params := CreateNodeParams{
		ID:       "test_folder_id_12345x",
		OwnerID:  owner.ID,
		ParentID: nil,
		Name:     "Test Folder",
		NodeType: "folder",
	}

	createdNode, err := testStore.CreateNode(context.Background(), params)

	require.NoError(t, err)
	require.NotNil(t, createdNode)

	require.Equal(t, params.ID, createdNode.ID)
	require.Equal(t, params.OwnerID, createdNode.OwnerID)
	require.Equal(t, params.Name, createdNode.Name)
	require.Equal(t, params.NodeType, createdNode.NodeType)
	require.Nil(t, createdNode.ParentID)
	require.Nil(t, createdNode.SizeBytes)
	require.Nil(t, createdNode.StorageKey)
	require.NotZero(t, createdNode.CreatedAt)
	require.NotZero(t, createdNode.ModifiedAt)
}

func TestCreateNode_DuplicateName(t *testing.T) {
	owner := createTestUser(t, "user_create_dup")
	folder := createTestNode(t, CreateNodeParams{ID: "dup_parent_folder_idx", OwnerID: owner.ID, Name: "Parent", NodeType: "folder"})

	createTestNode(t, CreateNodeParams{ID: "dup_child_one_id_xxxx", OwnerID: owner.ID, ParentID: &folder.ID, Name: "raport.txt", NodeType: "file"})

	_, err := testStore.CreateNode(context.Background(), CreateNodeParams{
		ID: "dup_child_two_id_xxxx", OwnerID: owner.ID, ParentID: &folder.ID, Name: "raport.txt", NodeType: "file",
	})
	require.ErrorIs(t, err, ErrDuplicateNodeName)

	// ta sama nazwa w katalogu głównym też jest konfliktem
	createTestNode(t, CreateNodeParams{ID: "dup_root_one_id_xxxxx", OwnerID: owner.ID, Name: "root.txt", NodeType: "file"})
	_, err = testStore.CreateNode(context.Background(), CreateNodeParams{
		ID: "dup_root_two_id_xxxxx", OwnerID: owner.ID, Name: "root.txt", NodeType: "file",
	})
	require.ErrorIs(t, err, ErrDuplicateNodeName)

	// inny użytkownik może mieć taką samą nazwę
	otherOwner := createTestUser(t, "user_create_dup_other")
	_, err = testStore.CreateNode(context.Background(), CreateNodeParams{
		ID: "dup_other_owner_idxxx", OwnerID: otherOwner.ID, Name: "root.txt", NodeType: "file",
	})
	require.NoError(t, err)
}

func TestGetNodesByParentID(t *testing.T) {
	owner := createTestUser(t, "user_get_nodes")

	createTestNode(t, CreateNodeParams{ID: "get_nodes_root_file1x", OwnerID: owner.ID, Name: "A_Root File", NodeType: "file"})
	createTestNode(t, CreateNodeParams{ID: "get_nodes_root_foldrx", OwnerID: owner.ID, Name: "Z_Root Folder", NodeType: "folder"})

	parentFolder := createTestNode(t, CreateNodeParams{ID: "get_nodes_parent_idxx", OwnerID: owner.ID, Name: "Parent", NodeType: "folder"})
	createTestNode(t, CreateNodeParams{ID: "get_nodes_child_filex", OwnerID: owner.ID, ParentID: &parentFolder.ID, Name: "Child File", NodeType: "file"})

	rootNodes, err := testStore.GetNodesByParentID(context.Background(), owner.ID, nil, 50, 0)
	require.NoError(t, err)
	require.Len(t, rootNodes, 3)
	// sortowanie: foldery najpierw, potem alfabetycznie
	require.Equal(t, "Parent", rootNodes[0].Name)
	require.Equal(t, "Z_Root Folder", rootNodes[1].Name)
	require.Equal(t, "A_Root File", rootNodes[2].Name)

	childNodes, err := testStore.GetNodesByParentID(context.Background(), owner.ID, &parentFolder.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, childNodes, 1)
	require.Equal(t, "Child File", childNodes[0].Name)

	emptyFolder := createTestNode(t, CreateNodeParams{ID: "get_nodes_empty_idxxx", OwnerID: owner.ID, Name: "Empty", NodeType: "folder"})
	emptyNodes, err := testStore.GetNodesByParentID(context.Background(), owner.ID, &emptyFolder.ID, 50, 0)
	require.NoError(t, err)
	require.Len(t, emptyNodes, 0)
}

func TestGetNodeByID(t *testing.T) {
	owner := createTestUser(t, "user_get_by_id")
	otherOwner := createTestUser(t, "other_user_get_by_id")
	node := createTestNode(t, CreateNodeParams{ID: "get_by_id_node_idxxxx", OwnerID: owner.ID, Name: "My Node", NodeType: "file"})

	foundNode, err := testStore.GetNodeByID(context.Background(), node.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, foundNode)
	require.Equal(t, node.ID, foundNode.ID)

	foundNode, err = testStore.GetNodeByID(context.Background(), node.ID, otherOwner.ID)
	require.NoError(t, err)
	require.Nil(t, foundNode, "Should not find a node belonging to another user")

	foundNode, err = testStore.GetNodeByID(context.Background(), "non_existent_node_idx", owner.ID)
	require.NoError(t, err)
	require.Nil(t, foundNode)
}

func TestRenameNode(t *testing.T) {
	owner := createTestUser(t, "user_rename_node")
	folder := createTestNode(t, CreateNodeParams{ID: "rename_parent_folderx", OwnerID: owner.ID, Name: "Parent", NodeType: "folder"})
	node := createTestNode(t, CreateNodeParams{ID: "rename_node_id_xxxxxx", OwnerID: owner.ID, ParentID: &folder.ID, Name: "old.txt", NodeType: "file"})
	createTestNode(t, CreateNodeParams{ID: "rename_sibling_idxxxx", OwnerID: owner.ID, ParentID: &folder.ID, Name: "taken.txt", NodeType: "file"})

	success, err := testStore.RenameNode(context.Background(), node.ID, owner.ID, "new.txt")
	require.NoError(t, err)
	require.True(t, success)

	renamed, err := testStore.GetNodeByID(context.Background(), node.ID, owner.ID)
	require.NoError(t, err)
	require.Equal(t, "new.txt", renamed.Name)

	// konflikt nazwy z istniejącym rodzeństwem
	success, err = testStore.RenameNode(context.Background(), node.ID, owner.ID, "taken.txt")
	require.ErrorIs(t, err, ErrDuplicateNodeName)
	require.False(t, success)

	// inny użytkownik nie może zmienić nazwy
	otherOwner := createTestUser(t, "user_rename_other")
	success, err = testStore.RenameNode(context.Background(), node.ID, otherOwner.ID, "stolen.txt")
	require.NoError(t, err)
	require.False(t, success)
}

func TestMoveNode(t *testing.T) {
	owner := createTestUser(t, "user_move_node")
	folder1 := createTestNode(t, CreateNodeParams{ID: "move_folder1_id_xxxxx", OwnerID: owner.ID, Name: "Folder 1", NodeType: "folder"})
	folder2 := createTestNode(t, CreateNodeParams{ID: "move_folder2_id_xxxxx", OwnerID: owner.ID, Name: "Folder 2", NodeType: "folder"})
	nodeToMove := createTestNode(t, CreateNodeParams{ID: "node_to_move_id_xxxxx", OwnerID: owner.ID, ParentID: &folder1.ID, Name: "File to Move", NodeType: "file"})

	success, err := testStore.MoveNode(context.Background(), nodeToMove.ID, owner.ID, &folder2.ID)
	require.NoError(t, err)
	require.True(t, success)

	movedNode, err := testStore.GetNodeByID(context.Background(), nodeToMove.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, movedNode.ParentID)
	require.Equal(t, folder2.ID, *movedNode.ParentID)

	// przeniesienie do nieistniejącego folderu (foreign key violation)
	success, err = testStore.MoveNode(context.Background(), nodeToMove.ID, owner.ID, strPtr("non_existent_folderxx"))
	require.ErrorIs(t, err, ErrNodeNotFound)
	require.False(t, success)

	// konflikt nazwy w folderze docelowym
	createTestNode(t, CreateNodeParams{ID: "move_conflict_id_xxxx", OwnerID: owner.ID, ParentID: &folder1.ID, Name: "File to Move", NodeType: "file"})
	success, err = testStore.MoveNode(context.Background(), nodeToMove.ID, owner.ID, &folder1.ID)
	require.ErrorIs(t, err, ErrDuplicateNodeName)
	require.False(t, success)
}

func TestDeleteNodeTree(t *testing.T) {
	owner := createTestUser(t, "user_delete_tree")

	// folder -> subfolder -> plik, plus plik bezpośrednio w folderze
	folder := createTestNode(t, CreateNodeParams{ID: "del_tree_folder_idxxx", OwnerID: owner.ID, Name: "Folder", NodeType: "folder"})
	subfolder := createTestNode(t, CreateNodeParams{ID: "del_tree_subfolder_ix", OwnerID: owner.ID, ParentID: &folder.ID, Name: "Subfolder", NodeType: "folder"})
	size1 := int64(100)
	size2 := int64(250)
	createTestNode(t, CreateNodeParams{ID: "del_tree_file1_idxxxx", OwnerID: owner.ID, ParentID: &subfolder.ID, Name: "deep.txt", NodeType: "file", SizeBytes: &size1, StorageKey: strPtr("del_tree_blob_key_1xx")})
	createTestNode(t, CreateNodeParams{ID: "del_tree_file2_idxxxx", OwnerID: owner.ID, ParentID: &folder.ID, Name: "shallow.txt", NodeType: "file", SizeBytes: &size2, StorageKey: strPtr("del_tree_blob_key_2xx")})

	keys, freed, found, err := testStore.DeleteNodeTree(context.Background(), folder.ID, owner.ID)
	require.NoError(t, err)
	require.True(t, found)
	require.ElementsMatch(t, []string{"del_tree_blob_key_1xx", "del_tree_blob_key_2xx"}, keys)
	require.Equal(t, int64(350), freed)

	var count int
	query := `SELECT count(*) FROM nodes WHERE id IN ($1, $2, $3, $4)`
	err = testStore.pool.QueryRow(context.Background(), query,
		"del_tree_folder_idxxx", "del_tree_subfolder_ix", "del_tree_file1_idxxxx", "del_tree_file2_idxxxx").Scan(&count)
	require.NoError(t, err)
	require.Equal(t, 0, count, "Expected the whole subtree to be gone")

	// nieistniejący lub cudzy węzeł
	_, _, found, err = testStore.DeleteNodeTree(context.Background(), "non_existent_id_xxxxx", owner.ID)
	require.NoError(t, err)
	require.False(t, found)

	otherOwner := createTestUser(t, "user_delete_tree_other")
	survivor := createTestNode(t, CreateNodeParams{ID: "del_tree_survivor_idx", OwnerID: owner.ID, Name: "survivor.txt", NodeType: "file"})
	_, _, found, err = testStore.DeleteNodeTree(context.Background(), survivor.ID, otherOwner.ID)
	require.NoError(t, err)
	require.False(t, found)

	stillThere, err := testStore.GetNodeByID(context.Background(), survivor.ID, owner.ID)
	require.NoError(t, err)
	require.NotNil(t, stillThere)
}

func TestSearchNodes(t *testing.T) {
	owner := createTestUser(t, "user_search_nodes")
	otherOwner := createTestUser(t, "user_search_other")

	folder := createTestNode(t, CreateNodeParams{ID: "search_folder_id_xxxx", OwnerID: owner.ID, Name: "Raporty", NodeType: "folder"})
	createTestNode(t, CreateNodeParams{ID: "search_file1_id_xxxxx", OwnerID: owner.ID, ParentID: &folder.ID, Name: "raport_roczny.pdf", NodeType: "file"})
	createTestNode(t, CreateNodeParams{ID: "search_file2_id_xxxxx", OwnerID: owner.ID, Name: "notatki.txt", NodeType: "file"})
	createTestNode(t, CreateNodeParams{ID: "search_file3_id_xxxxx", OwnerID: owner.ID, Name: "100%_done.txt", NodeType: "file"})
	createTestNode(t, CreateNodeParams{ID: "search_foreign_id_xxx", OwnerID: otherOwner.ID, Name: "raport_cudzy.pdf", NodeType: "file"})

	results, err := testStore.SearchNodes(context.Background(), owner.ID, "raport", 50, 0)
	require.NoError(t, err)
	require.Len(t, results, 2)
	require.Equal(t, "Raporty", results[0].Name, "folders should sort before files")
	require.Equal(t, "raport_roczny.pdf", results[1].Name)

	// wyniki nigdy nie zawierają plików innego użytkownika
	for _, node := range results {
		require.Equal(t, owner.ID, node.OwnerID)
	}

	// znaki wieloznaczne są traktowane dosłownie
	results, err = testStore.SearchNodes(context.Background(), owner.ID, "100%", 50, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Equal(t, "100%_done.txt", results[0].Name)

	results, err = testStore.SearchNodes(context.Background(), owner.ID, "%", 50, 0)
	require.NoError(t, err)
	require.Len(t, results, 1)

	results, err = testStore.SearchNodes(context.Background(), owner.ID, "no_such_thing", 50, 0)
	require.NoError(t, err)
	require.Empty(t, results)
}

func TestLockNode(t *testing.T) {
	owner := createTestUser(t, "user_lock_node")
	node := createTestNode(t, CreateNodeParams{ID: "lock_node_id_xxxxxxxx", OwnerID: owner.ID, Name: "Locked", NodeType: "folder"})

	err := testStore.ExecTx(context.Background(), func(q *Queries) error {
		locked, err := q.LockNode(context.Background(), node.ID, owner.ID)
		require.NoError(t, err)
		require.True(t, locked)

		locked, err = q.LockNode(context.Background(), "missing_node_idxxxxxx", owner.ID)
		require.NoError(t, err)
		require.False(t, locked)
		return nil
	})
	require.NoError(t, err)
}
