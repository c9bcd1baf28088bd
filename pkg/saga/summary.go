// Copyright © 2025 jackelyj <dreamerlyj@gmail.com>
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in
// all copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN
// THE SOFTWARE.
//

package saga

// Summarize derives the execution summary of a saga from its events.
// It returns nil when events is empty.
func Summarize(sagaID string, events []SagaEvent) *ExecutionSummary {
	if len(events) == 0 {
		return nil
	}

	summary := &ExecutionSummary{
		SagaID:         sagaID,
		Status:         StatusStarted,
		CompletedSteps: []string{},
		StartTime:      events[0].Timestamp,
		TotalEvents:    len(events),
	}

	var sagaCompleted, sagaFailed, stepFailed bool
	for _, e := range events {
		if e.IsSagaLevel() {
			switch e.Kind {
			case EventStarted:
				summary.SagaType = e.Detail
				summary.StartTime = e.Timestamp
			case EventCompleted:
				sagaCompleted = true
				summary.EndTime = e.Timestamp
			case EventFailed:
				sagaFailed = true
				summary.EndTime = e.Timestamp
				if summary.ErrorMessage == "" {
					summary.ErrorMessage = e.Error
				}
			}
			continue
		}

		switch e.Kind {
		case EventCompleted:
			summary.CompletedSteps = append(summary.CompletedSteps, e.StepName)
		case EventFailed:
			if !stepFailed {
				stepFailed = true
				summary.FailedStep = e.StepName
				summary.ErrorMessage = e.Error
			}
		case EventCompensated:
			summary.Compensated = true
			summary.EndTime = e.Timestamp
			if e.Error != "" {
				summary.FailedCompensations = append(summary.FailedCompensations, CompensationFailure{
					StepName: e.StepName,
					Error:    e.Error,
					At:       e.Timestamp,
				})
			}
		}
	}

	switch {
	case sagaCompleted:
		summary.Status = StatusCompleted
	case sagaFailed:
		summary.Status = StatusFailed
	case stepFailed:
		summary.Status = StatusCompensated
		if summary.EndTime.IsZero() {
			summary.EndTime = events[len(events)-1].Timestamp
		}
	}

	if !summary.EndTime.IsZero() {
		summary.Duration = summary.EndTime.Sub(summary.StartTime)
	}
	return summary
}
