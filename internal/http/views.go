package http

import (
	"finlens/internal/core"
	"finlens/internal/services"
)

type transactionView struct {
	ID               string    `json:"id"`
	AccountID        string    `json:"accountId"`
	ProviderTxnID    string    `json:"providerTransactionId"`
	Name             string    `json:"name"`
	MerchantName     string    `json:"merchantName,omitempty"`
	ProviderCategory []string  `json:"providerCategory,omitempty"`
	Amount           money     `json:"amount"`
	Category         string    `json:"category"`
	Subcategory      string    `json:"subcategory,omitempty"`
	Date             core.Date `json:"date"`
	Pending          bool      `json:"pending"`
	PaymentChannel   string    `json:"paymentChannel,omitempty"`
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:               t.ID,
		AccountID:        t.AccountID,
		ProviderTxnID:    t.ProviderTxnID,
		Name:             t.Name,
		MerchantName:     t.MerchantName,
		ProviderCategory: t.ProviderCategory,
		Amount:           money(t.Amount),
		Category:         t.ResolvedCategory(),
		Subcategory:      t.Subcategory,
		Date:             t.Date,
		Pending:          t.Pending,
		PaymentChannel:   t.PaymentChannel,
	}
}

func newTransactionViews(txns []core.Transaction) []transactionView {
	out := make([]transactionView, len(txns))
	for i, t := range txns {
		out[i] = newTransactionView(t)
	}
	return out
}

type accountSummaryView struct {
	core.Account
	CurrentBalance   money `json:"currentBalance"`
	AvailableBalance money `json:"availableBalance"`
}

func newAccountSummaryView(a core.Account) accountSummaryView {
	return accountSummaryView{
		Account:          a,
		CurrentBalance:   money(a.CurrentBalance),
		AvailableBalance: money(a.AvailableBalance),
	}
}

func newAccountSummaryViews(accounts []core.Account) []accountSummaryView {
	out := make([]accountSummaryView, len(accounts))
	for i, a := range accounts {
		out[i] = newAccountSummaryView(a)
	}
	return out
}

type accountView struct {
	accountSummaryView
	Transactions []transactionView `json:"transactions"`
}

func newAccountView(v services.AccountView) accountView {
	return accountView{
		accountSummaryView: newAccountSummaryView(v.Account),
		Transactions:       newTransactionViews(v.Transactions),
	}
}

func newAccountViews(views []services.AccountView) []accountView {
	out := make([]accountView, len(views))
	for i, v := range views {
		out[i] = newAccountView(v)
	}
	return out
}

type budgetView struct {
	core.Budget
	Amount  money      `json:"amount"`
	EndDate *core.Date `json:"endDate,omitempty"`
}

func newBudgetView(b core.Budget) budgetView {
	v := budgetView{Budget: b, Amount: money(b.Amount)}
	if !b.EndDate.IsZero() {
		end := b.EndDate
		v.EndDate = &end
	}
	return v
}

func newBudgetViews(budgets []core.Budget) []budgetView {
	out := make([]budgetView, len(budgets))
	for i, b := range budgets {
		out[i] = newBudgetView(b)
	}
	return out
}

type budgetStatusView struct {
	Budget    budgetView `json:"budget"`
	From      core.Date  `json:"from"`
	To        core.Date  `json:"to"`
	Spent     money      `json:"spent"`
	Remaining money      `json:"remaining"`
	Exceeded  bool       `json:"exceeded"`
}

func newBudgetStatusViews(statuses []core.BudgetStatus) []budgetStatusView {
	out := make([]budgetStatusView, len(statuses))
	for i, st := range statuses {
		out[i] = budgetStatusView{
			Budget:    newBudgetView(st.Budget),
			From:      st.From,
			To:        st.To,
			Spent:     money(st.Spent),
			Remaining: money(st.Remaining),
			Exceeded:  st.Exceeded,
		}
	}
	return out
}

type categoryTotalView struct {
	Category string `json:"category"`
	Amount   money  `json:"amount"`
}

func newCategoryTotalViews(totals []core.CategoryTotal) []categoryTotalView {
	out := make([]categoryTotalView, len(totals))
	for i, ct := range totals {
		out[i] = categoryTotalView{Category: ct.Category, Amount: money(ct.Amount)}
	}
	return out
}

type forecastView struct {
	Category  string `json:"category"`
	Predicted money  `json:"predicted"`
}

func newForecastViews(forecasts []core.CategoryForecast) []forecastView {
	out := make([]forecastView, len(forecasts))
	for i, f := range forecasts {
		out[i] = forecastView{Category: f.Category, Predicted: money(f.Predicted)}
	}
	return out
}

type dashboardView struct {
	TotalBalance  money               `json:"totalBalance"`
	TotalSpent    money               `json:"totalSpent"`
	TotalIncome   money               `json:"totalIncome"`
	NetSavings    money               `json:"netSavings"`
	TopCategories []categoryTotalView `json:"topCategories"`
	AccountCount  int                 `json:"accountCount"`
	ActiveBudgets int                 `json:"activeBudgets"`
}

func newDashboardView(d core.DashboardSummary) dashboardView {
	return dashboardView{
		TotalBalance:  money(d.TotalBalance),
		TotalSpent:    money(d.Spent),
		TotalIncome:   money(d.Income),
		NetSavings:    money(d.Net),
		TopCategories: newCategoryTotalViews(d.TopCategories),
		AccountCount:  d.AccountCount,
		ActiveBudgets: d.ActiveBudgets,
	}
}

type profileView struct {
	core.User
	Accounts []accountSummaryView `json:"accounts"`
	Budgets  []budgetView  `json:"budgets"`
}

func newProfileView(p services.UserProfile) profileView {
	return profileView{
		User:     p.User,
		Accounts: newAccountSummaryViews(p.Accounts),
		Budgets:  newBudgetViews(p.Budgets),
	}
}
