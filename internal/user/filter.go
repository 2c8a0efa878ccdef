package user

import "strings"

// Filter keeps users whose name contains query, ignoring case.
func Filter(users []User, query string) []User {
	needle := strings.ToLower(query)
	out := make([]User, 0, len(users))
	for _, u := range users {
		if strings.Contains(strings.ToLower(u.Name), needle) {
			out = append(out, u)
		}
	}
	return out
}

func indexOf(users []User, id int) int {
	for i, u := range users {
		if u.ID == id {
			return i
		}
	}
	return -1
}

// nextID returns the remote ID unless it is unset or already taken,
// in which case it returns one past the highest ID in the list.
func nextID(users []User, remoteID int) int {
	if remoteID > 0 && indexOf(users, remoteID) < 0 {
		return remoteID
	}
	highest := 0
	for _, u := range users {
		if u.ID > highest {
			highest = u.ID
		}
	}
	return highest + 1
}
