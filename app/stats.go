package app

import "todoflow/model"

// ComputeStatistics recomputes the snapshot from the full collection.
// An empty collection yields all zeros, including the completion rate.
func ComputeStatistics(todos []model.Todo) model.Statistics {
	var st model.Statistics
	st.Total = len(todos)
	for _, t := range todos {
		if t.IsCompleted {
			st.Completed++
		}
		if !t.IsCompleted && t.Priority == model.PriorityHigh {
			st.HighPriorityActive++
		}
		if t.IsFavorite {
			st.Favorites++
			if t.IsCompleted {
				st.FavoriteCompleted++
			}
		}
	}
	st.Active = st.Total - st.Completed
	if st.Total > 0 {
		st.CompletionRate = float64(st.Completed) / float64(st.Total) * 100
	}
	return st
}
