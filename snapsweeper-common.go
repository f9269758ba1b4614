package snapsweeper

func containsString(strSlice []string, searchStr string) bool {
    for _, value := range strSlice {
        if value == searchStr {
            return true
        }
    }
    return false
}

func dedupeString(strSlice []string) []string {
    var returnSlice []string
    for _, value := range strSlice {
        if !containsString(returnSlice, value) {
            returnSlice = append(returnSlice, value)
        }
    }
    return returnSlice
}
