// Package testdb はリポジトリ結合テスト用のPostgreSQLを提供する。
//
// TEST_DATABASE_URL が設定されていればその接続先を使用し、
// 未設定の場合はtestcontainers-goでPostgreSQLコンテナを起動する。
// どちらの場合もマイグレーションを適用した状態で返す。
//
// 使い方:
//
//	func TestSomething(t *testing.T) {
//	    tdb := testdb.New(t)
//	    repo := repository.NewPostgresDeckRepo(tdb.DB)
//	    // ...
//	}
package testdb
