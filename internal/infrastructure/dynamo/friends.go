package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/hive-api/internal/domain"
)

// edgeUpdate is one conditional update against a single user item.
type edgeUpdate struct {
	UserID    string
	Update    string
	Condition string
	Names     map[string]string
	Values    map[string]types.AttributeValue
}

func (e edgeUpdate) updateItemInput(table string) *dynamodb.UpdateItemInput {
	return &dynamodb.UpdateItemInput{
		TableName:                 aws.String(table),
		Key:                       strKey(fieldUserID, e.UserID),
		UpdateExpression:          aws.String(e.Update),
		ConditionExpression:       aws.String(e.Condition),
		ExpressionAttributeNames:  e.Names,
		ExpressionAttributeValues: e.Values,
	}
}

func (e edgeUpdate) transactItem(table string) types.TransactWriteItem {
	return types.TransactWriteItem{Update: &types.Update{
		TableName:                 aws.String(table),
		Key:                       strKey(fieldUserID, e.UserID),
		UpdateExpression:          aws.String(e.Update),
		ConditionExpression:       aws.String(e.Condition),
		ExpressionAttributeNames:  e.Names,
		ExpressionAttributeValues: e.Values,
	}}
}

// addRequestUpdate writes a pending entry into the receiver's request map,
// provided the receiver exists, holds no entry from the sender and is not
// already friends with them.
func addRequestUpdate(receiverID string, req domain.FriendRequest) (edgeUpdate, error) {
	av, err := attributevalue.Marshal(req)
	if err != nil {
		return edgeUpdate{}, fmt.Errorf("marshal friend request: %w", err)
	}
	return edgeUpdate{
		UserID:    receiverID,
		Update:    "SET #fr.#s = :req, #upd = :now",
		Condition: "attribute_exists(#id) AND attribute_not_exists(#fr.#s) AND NOT contains(#f, :sid)",
		Names: map[string]string{
			"#id":  fieldUserID,
			"#fr":  fieldFriendRequests,
			"#s":   req.Sender,
			"#f":   fieldFriends,
			"#upd": fieldUpdatedAt,
		},
		Values: map[string]types.AttributeValue{
			":req": av,
			":sid": str(req.Sender),
			":now": nowAttr(),
		},
	}, nil
}

// acceptUpdates returns the receiver-side and sender-side halves of an
// accepted request. The receiver side only applies while the entry is pending.
func acceptUpdates(userID, senderID string) (receiver, sender edgeUpdate) {
	now := nowAttr()
	receiver = edgeUpdate{
		UserID:    userID,
		Update:    "REMOVE #fr.#s ADD #f :sender SET #upd = :now",
		Condition: "#fr.#s.#st = :pending",
		Names: map[string]string{
			"#fr":  fieldFriendRequests,
			"#s":   senderID,
			"#st":  fieldStatus,
			"#f":   fieldFriends,
			"#upd": fieldUpdatedAt,
		},
		Values: map[string]types.AttributeValue{
			":sender":  strSet(senderID),
			":pending": str(string(domain.RequestPending)),
			":now":     now,
		},
	}
	sender = setMembershipUpdate(senderID, "ADD", fieldFriends, userID)
	sender.Values[":now"] = now
	return receiver, sender
}

func rejectUpdate(userID, senderID string) edgeUpdate {
	return edgeUpdate{
		UserID:    userID,
		Update:    "REMOVE #fr.#s SET #upd = :now",
		Condition: "attribute_exists(#fr.#s)",
		Names: map[string]string{
			"#fr":  fieldFriendRequests,
			"#s":   senderID,
			"#upd": fieldUpdatedAt,
		},
		Values: map[string]types.AttributeValue{":now": nowAttr()},
	}
}

// setMembershipUpdate adds (op ADD) or removes (op DELETE) member from the
// string set attr of an existing user.
func setMembershipUpdate(userID, op, attr, member string) edgeUpdate {
	return edgeUpdate{
		UserID:    userID,
		Update:    op + " #set :m SET #upd = :now",
		Condition: "attribute_exists(#id)",
		Names: map[string]string{
			"#id":  fieldUserID,
			"#set": attr,
			"#upd": fieldUpdatedAt,
		},
		Values: map[string]types.AttributeValue{
			":m":   strSet(member),
			":now": nowAttr(),
		},
	}
}

// AddFriendRequest stores a pending request on the receiver. It fails with
// ErrConflict when an entry from the sender already exists, the two are
// already friends, or the receiver is gone.
func (r *UserRepo) AddFriendRequest(ctx context.Context, receiverID string, req domain.FriendRequest) error {
	upd, err := addRequestUpdate(receiverID, req)
	if err != nil {
		return err
	}
	_, err = r.client.UpdateItem(ctx, upd.updateItemInput(r.tableName))
	if isConditionFailed(err) {
		return fmt.Errorf("friend request from %s: %w", req.Sender, domain.ErrConflict)
	}
	if err != nil {
		return fmt.Errorf("add friend request: %w", err)
	}
	return nil
}

// AcceptFriendRequest removes the pending entry and creates the symmetric
// edge in one transaction. It fails with ErrNotFound when no pending entry
// from senderID exists or the sender no longer exists.
func (r *UserRepo) AcceptFriendRequest(ctx context.Context, userID, senderID string) error {
	receiver, sender := acceptUpdates(userID, senderID)
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			receiver.transactItem(r.tableName),
			sender.transactItem(r.tableName),
		},
	})
	if failed, ok := cancelledConditions(err); ok {
		if len(failed) > 1 && failed[1] && !failed[0] {
			return fmt.Errorf("sender %s: %w", senderID, domain.ErrNotFound)
		}
		if len(failed) > 0 && failed[0] {
			return fmt.Errorf("pending request from %s: %w", senderID, domain.ErrNotFound)
		}
	}
	if err != nil {
		return fmt.Errorf("accept friend request: %w", err)
	}
	return nil
}

// RemoveFriendRequest deletes the entry from senderID whatever its status.
func (r *UserRepo) RemoveFriendRequest(ctx context.Context, userID, senderID string) error {
	_, err := r.client.UpdateItem(ctx, rejectUpdate(userID, senderID).updateItemInput(r.tableName))
	if isConditionFailed(err) {
		return fmt.Errorf("request from %s: %w", senderID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("remove friend request: %w", err)
	}
	return nil
}

// RemoveFriend drops the edge from both sides in one transaction. Removing a
// non-existent edge is not an error.
func (r *UserRepo) RemoveFriend(ctx context.Context, userID, friendID string) error {
	_, err := r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			setMembershipUpdate(userID, "DELETE", fieldFriends, friendID).transactItem(r.tableName),
			setMembershipUpdate(friendID, "DELETE", fieldFriends, userID).transactItem(r.tableName),
		},
	})
	if _, ok := cancelledConditions(err); ok {
		return fmt.Errorf("remove friend: %w", domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("remove friend: %w", err)
	}
	return nil
}

func (r *UserRepo) Block(ctx context.Context, userID, blockedID string) error {
	return r.updateMembership(ctx, setMembershipUpdate(userID, "ADD", fieldBlocked, blockedID))
}

func (r *UserRepo) Unblock(ctx context.Context, userID, blockedID string) error {
	return r.updateMembership(ctx, setMembershipUpdate(userID, "DELETE", fieldBlocked, blockedID))
}

func (r *UserRepo) updateMembership(ctx context.Context, upd edgeUpdate) error {
	_, err := r.client.UpdateItem(ctx, upd.updateItemInput(r.tableName))
	if isConditionFailed(err) {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return err
}
