package mongo

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"buddyfeed/pkg/models"
)

// pathFilter matches the post document only if every level of path exists in it.
func pathFilter(path models.Path) bson.M {
	switch path.Level() {
	case models.LevelReply:
		return bson.M{
			"_id": path.PostID,
			"comments": bson.M{"$elemMatch": bson.M{
				"_id":         path.CommentID,
				"replies._id": path.ReplyID,
			}},
		}
	case models.LevelComment:
		return bson.M{"_id": path.PostID, "comments._id": path.CommentID}
	}
	return bson.M{"_id": path.PostID}
}

// togglePipeline builds the update that flips actorID's membership in the liker set
// addressed by path. Comments and replies are located by id with $map, never by position.
func togglePipeline(path models.Path, actorID string) mongo.Pipeline {
	var set bson.M
	switch path.Level() {
	case models.LevelPost:
		set = bson.M{"liker_ids": toggleExpr("$liker_ids", actorID)}

	case models.LevelComment:
		set = bson.M{"comments": mapMatching("$comments", "c", path.CommentID,
			bson.M{"liker_ids": toggleExpr("$$c.liker_ids", actorID)})}

	case models.LevelReply:
		replies := mapMatching("$$c.replies", "r", path.ReplyID,
			bson.M{"liker_ids": toggleExpr("$$r.liker_ids", actorID)})
		set = bson.M{"comments": mapMatching("$comments", "c", path.CommentID,
			bson.M{"replies": replies})}
	}

	return mongo.Pipeline{{{Key: "$set", Value: set}}}
}

// mapMatching rewrites the array at input, merging fields into the element whose _id
// equals id and leaving the others untouched.
func mapMatching(input, as string, id any, fields bson.M) bson.M {
	elem := "$$" + as
	return bson.M{"$map": bson.M{
		"input": bson.M{"$ifNull": bson.A{input, bson.A{}}},
		"as":    as,
		"in": bson.M{"$cond": bson.A{
			bson.M{"$eq": bson.A{elem + "._id", id}},
			bson.M{"$mergeObjects": bson.A{elem, fields}},
			elem,
		}},
	}}
}

// toggleExpr removes actorID from the array at field if present and appends it otherwise.
func toggleExpr(field, actorID string) bson.M {
	actor := bson.M{"$literal": actorID}
	current := bson.M{"$ifNull": bson.A{field, bson.A{}}}

	return bson.M{"$cond": bson.A{
		bson.M{"$in": bson.A{actor, current}},
		bson.M{"$filter": bson.M{
			"input": current,
			"as":    "id",
			"cond":  bson.M{"$ne": bson.A{"$$id", actor}},
		}},
		bson.M{"$concatArrays": bson.A{current, bson.A{actor}}},
	}}
}
