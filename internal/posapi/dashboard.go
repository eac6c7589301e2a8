package posapi

import "context"

func (c *Client) GetDashboardStats(ctx context.Context) (DashboardStats, error) {
	var stats DashboardStats
	if err := c.get(ctx, "/dashboard/stats", nil, &stats); err != nil {
		return DashboardStats{}, err
	}
	return stats, nil
}
