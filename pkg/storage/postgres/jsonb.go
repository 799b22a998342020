package postgres

import (
	"fmt"

	"buddyfeed/pkg/models"
)

// jsonArray reads a jsonb array expression, treating a missing key or JSON null as [].
func jsonArray(expr string) string {
	return fmt.Sprintf("COALESCE(NULLIF(%s, 'null'::jsonb), '[]'::jsonb)", expr)
}

// toggleExpr removes the actor ($2) from the array at expr if present and appends it
// otherwise.
func toggleExpr(expr string) string {
	arr := jsonArray(expr)
	return fmt.Sprintf("CASE WHEN %[1]s ? $2::text THEN %[1]s - $2::text ELSE %[1]s || jsonb_build_array($2::text) END", arr)
}

// mapMatching rebuilds the array at input in its original order, replacing the element
// whose "id" equals the text parameter id with the expression in, which refers to the
// element as alias.
func mapMatching(input, alias, id, in string) string {
	return fmt.Sprintf(`(
		SELECT COALESCE(jsonb_agg(CASE WHEN %[2]s->>'id' = %[3]s::text THEN %[4]s ELSE %[2]s END ORDER BY %[2]s_ord), '[]'::jsonb)
		FROM jsonb_array_elements(%[1]s) WITH ORDINALITY AS %[2]s_elems(%[2]s, %[2]s_ord)
	)`, jsonArray(input), alias, id, in)
}

// containsPath matches a post document in which every level of path exists.
func containsPath(path models.Path) string {
	switch path.Level() {
	case models.LevelReply:
		return `doc->'comments' @> jsonb_build_array(jsonb_build_object(
			'id', $3::text,
			'replies', jsonb_build_array(jsonb_build_object('id', $4::text))))`
	case models.LevelComment:
		return `doc->'comments' @> jsonb_build_array(jsonb_build_object('id', $3::text))`
	}
	return "TRUE"
}

// likedExpr reports whether the actor is a liker of the entity at path in the updated doc.
func likedExpr(path models.Path) string {
	switch path.Level() {
	case models.LevelReply:
		return `doc->'comments' @> jsonb_build_array(jsonb_build_object(
			'id', $3::text,
			'replies', jsonb_build_array(jsonb_build_object(
				'id', $4::text,
				'liker_ids', jsonb_build_array($2::text)))))`
	case models.LevelComment:
		return `doc->'comments' @> jsonb_build_array(jsonb_build_object(
			'id', $3::text,
			'liker_ids', jsonb_build_array($2::text)))`
	}
	return `doc->'liker_ids' ? $2::text`
}

// toggleQuery builds the single statement that flips actorID's membership in the liker set
// addressed by path. Parameters: $1 post id, $2 actor, $3 comment id, $4 reply id.
func toggleQuery(path models.Path, actorID string) (string, []any) {
	args := []any{path.PostID, actorID}

	var set string
	switch path.Level() {
	case models.LevelPost:
		set = fmt.Sprintf("jsonb_set(doc, '{liker_ids}', %s)", toggleExpr("doc->'liker_ids'"))

	case models.LevelComment:
		args = append(args, path.CommentID.String())
		toggled := fmt.Sprintf("jsonb_set(c, '{liker_ids}', %s)", toggleExpr("c->'liker_ids'"))
		set = fmt.Sprintf("jsonb_set(doc, '{comments}', %s)", mapMatching("doc->'comments'", "c", "$3", toggled))

	case models.LevelReply:
		args = append(args, path.CommentID.String(), path.ReplyID.String())
		toggled := fmt.Sprintf("jsonb_set(r, '{liker_ids}', %s)", toggleExpr("r->'liker_ids'"))
		replies := fmt.Sprintf("jsonb_set(c, '{replies}', %s)", mapMatching("c->'replies'", "r", "$4", toggled))
		set = fmt.Sprintf("jsonb_set(doc, '{comments}', %s)", mapMatching("doc->'comments'", "c", "$3", replies))
	}

	query := fmt.Sprintf(`
		UPDATE posts
		SET doc = %s
		WHERE id = $1 AND %s
		RETURNING %s
	`, set, containsPath(path), likedExpr(path))

	return query, args
}
